package provider

import (
	"bufio"
	"io"
	"strings"
)

// scanSSE calls fn with the payload of every "data:" line of a server-sent
// event stream until fn returns false or the stream ends.
func scanSSE(r io.Reader, fn func(data string) bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if !fn(data) {
			return nil
		}
	}
	return scanner.Err()
}
