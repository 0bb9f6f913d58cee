package web

import (
	"fmt"
	"strconv"
	"strings"
)

// byteRange is an inclusive byte span within a file of known size.
type byteRange struct {
	start int64
	end   int64
}

// parseRange interprets a Range request header against the given file
// size. Returns ok=false when the header is absent. Only single ranges
// are supported; multipart range sets are treated as malformed.
// Unsatisfiable ranges error so the caller can answer 416.
func parseRange(header string, size int64) (byteRange, bool, error) {
	if header == "" {
		return byteRange{}, false, nil
	}

	spec, found := strings.CutPrefix(header, "bytes=")
	if !found {
		return byteRange{}, false, fmt.Errorf("unsupported range unit")
	}
	if strings.Contains(spec, ",") {
		return byteRange{}, false, fmt.Errorf("multipart ranges not supported")
	}

	startStr, endStr, found := strings.Cut(strings.TrimSpace(spec), "-")
	if !found {
		return byteRange{}, false, fmt.Errorf("malformed range %q", header)
	}

	// Suffix form: "bytes=-N" is the last N bytes.
	if startStr == "" {
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 {
			return byteRange{}, false, fmt.Errorf("malformed range %q", header)
		}
		if n > size {
			n = size
		}
		if n == 0 {
			return byteRange{}, false, fmt.Errorf("unsatisfiable range %q", header)
		}
		return byteRange{start: size - n, end: size - 1}, true, nil
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return byteRange{}, false, fmt.Errorf("malformed range %q", header)
	}
	if start >= size {
		return byteRange{}, false, fmt.Errorf("unsatisfiable range %q", header)
	}

	// Open form: "bytes=N-" runs to the end of the file.
	if endStr == "" {
		return byteRange{start: start, end: size - 1}, true, nil
	}

	end, err := strconv.ParseInt(endStr, 10, 64)
	if err != nil || end < start {
		return byteRange{}, false, fmt.Errorf("malformed range %q", header)
	}
	if end >= size {
		end = size - 1
	}
	return byteRange{start: start, end: end}, true, nil
}
