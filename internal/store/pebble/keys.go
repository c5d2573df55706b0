package pebblejobs

import "bytes"

// Keyspace. Every key starts with "xw/". Variable-length components are
// terminated with a 0x00 byte so one topic can never prefix another.
const (
	prefixJob       = "xw/job/"
	prefixTopicIdx  = "xw/idx/topic/"
	prefixOwnerIdx  = "xw/idx/owner/"
	prefixScopeIdx  = "xw/idx/scope/"
	prefixDLQ       = "xw/dlq/"
	prefixErrDetail = "xw/errdetail/"
	prefixScope     = "xw/scope/"
	prefixIDLink    = "xw/idlink/"
	keySchema       = "xw/meta/schema"
)

const sep = 0x00

func jobKey(id string) []byte {
	return []byte(prefixJob + id)
}

func dlqKey(id string) []byte {
	return []byte(prefixDLQ + id)
}

func errDetailKey(ref string) []byte {
	return []byte(prefixErrDetail + ref)
}

func scopeKey(id string) []byte {
	return []byte(prefixScope + id)
}

// indexPrefix is prefix + value + 0x00.
func indexPrefix(prefix, value string) []byte {
	b := make([]byte, 0, len(prefix)+len(value)+1)
	b = append(b, prefix...)
	b = append(b, value...)
	return append(b, sep)
}

func indexKey(prefix, value, id string) []byte {
	return append(indexPrefix(prefix, value), id...)
}

// idFromIndexKey returns the id after the last separator.
func idFromIndexKey(k []byte) string {
	i := bytes.LastIndexByte(k, sep)
	return string(k[i+1:])
}

func linkPrefix(correlationID string) []byte {
	return indexPrefix(prefixIDLink, correlationID)
}

func linkKey(correlationID, kind, name string) []byte {
	b := linkPrefix(correlationID)
	b = append(b, kind...)
	b = append(b, sep)
	return append(b, name...)
}
