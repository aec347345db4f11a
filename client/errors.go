package client

import "fmt"

// RemoteCallError is any answer other than 200. Body is the server's text,
// usually the message of the error the operation returned.
type RemoteCallError struct {
	StatusCode int
	Body       string
}

func (e *RemoteCallError) Error() string {
	return e.Body
}

// Detail includes the status code, for logs.
func (e *RemoteCallError) Detail() string {
	return fmt.Sprintf("remote call failed with status %d: %s", e.StatusCode, e.Body)
}
