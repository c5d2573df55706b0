// Package extworker is the service layer behind the HTTP and gRPC
// transports for external worker jobs.
//
// # Overview
//
// Workers poll a topic, receive a batch of jobs with a lease, do the work
// outside the engine and report back. The service wraps the extjob engine
// with configured defaults and long-poll acquisition.
//
// # Job Flow
//
//  1. Engine → Create → job stored, topic notified
//  2. Worker → Acquire (optionally waiting) → lease on each job
//  3. Worker → Complete or Terminate → variables written, follow-up job queued
//  4. [OR] Worker → Fail → hold-off for the retry timeout, or dead letter
//  5. [OR] Worker → Unacquire → job free for the next poll
//  6. [OR] Lease expires → any worker may take the job
//
// # Long Poll
//
// Acquire with a wait re-polls whenever the topic is notified and on a short
// tick, so that expired leases and hold-offs are picked up too.
package extworker
