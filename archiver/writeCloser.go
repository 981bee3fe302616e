package archiver

import "io"

type callbackWriteCloser struct {
	writer io.Writer
	close  func() error
	closed bool
}

func (w *callbackWriteCloser) Write(p []byte) (n int, err error) {
	return w.writer.Write(p)
}

// Close runs the callback once; further calls are no-ops.
func (w *callbackWriteCloser) Close() error {
	if w.closed || w.close == nil {
		return nil
	}
	w.closed = true
	return w.close()
}
