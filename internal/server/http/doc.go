// Package httpserver provides the REST gateway for xwork: the worker
// protocol (acquire, complete, fail, unacquire) and job administration as
// JSON endpoints on a chi router.
//
// Example:
//
//	svc, _ := extworker.New(rt)
//	s := httpserver.New(rt, svc, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":8080")
package httpserver
