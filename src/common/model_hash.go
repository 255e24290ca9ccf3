package common

import (
	"fmt"
	"hash/fnv"
)

// ModelHash returns a short fingerprint of a model, used to follow one model
// across the logs of several nodes. It is not collision resistant.
func ModelHash(model []byte) string {
	h := fnv.New32a()

	h.Write(model)

	return fmt.Sprintf("%08x", h.Sum32())
}
