package certificate

import (
	"errors"
	"fmt"
	"os"
)

// Artifact is a rendered certificate. Path is set once the bytes have been
// spooled to disk and cleared again by Remove.
type Artifact struct {
	Data []byte
	Name string
	Path string
}

// Spool writes the certificate to a new file in dir (the system temp dir if
// empty).
func (a *Artifact) Spool(dir string) error {
	f, err := os.CreateTemp(dir, "certificate-*.pdf")
	if err != nil {
		return fmt.Errorf("failed to create spool file: %w", err)
	}

	if _, err := f.Write(a.Data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("failed to write spool file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("failed to close spool file: %w", err)
	}

	a.Path = f.Name()
	return nil
}

// Remove deletes the spooled file. Calling it again is a no-op.
func (a *Artifact) Remove() error {
	if a == nil || a.Path == "" {
		return nil
	}
	if err := os.Remove(a.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove spool file: %w", err)
	}
	a.Path = ""
	return nil
}
