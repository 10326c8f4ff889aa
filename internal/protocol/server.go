package protocol

import (
	"errors"
	"io"
)

// Serve runs the read-dispatch-write loop until the transport's
// underlying reader closes (spec.md §5: the controller never initiates
// traffic, it only responds). It returns nil on a clean EOF.
func Serve(t *Transport, s *Server) error {
	for {
		req, err := t.ReadRequest()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		resp := s.Handle(req)
		if err := t.WriteResponse(resp); err != nil {
			return err
		}
	}
}
