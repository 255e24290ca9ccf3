package common

// Byte size units used to size model buffers.
const (
	KB = 1024
	MB = 1024 * KB
	GB = 1024 * MB
)
