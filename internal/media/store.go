// Package media stores uploaded files on local disk.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const proofDir = "payment_proofs"

// MaxProofBytes caps a single proof upload.
const MaxProofBytes = 5 << 20

var (
	ErrTooLarge        = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported image type")
)

var imageExt = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true}

// Disk writes files under Root and hands back paths relative to it.
type Disk struct {
	Root string
}

// SaveProof writes a proof-of-payment image as payment_proofs/<uuid><ext>.
// Only image extensions are accepted.
func (d Disk) SaveProof(ctx context.Context, orderID, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !imageExt[ext] {
		return "", fmt.Errorf("proof %q: %w", filename, ErrUnsupportedType)
	}
	rel := filepath.ToSlash(filepath.Join(proofDir, uuid.NewString()+ext))
	abs := filepath.Join(d.Root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("proof dir: %w", err)
	}

	f, err := os.OpenFile(abs, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create proof: %w", err)
	}
	n, err := io.Copy(f, io.LimitReader(r, MaxProofBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > MaxProofBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(abs)
		return "", fmt.Errorf("write proof for order %s: %w", orderID, err)
	}
	return rel, nil
}

// RemoveProof deletes a stored proof. A file that is already gone is not an
// error.
func (d Disk) RemoveProof(ctx context.Context, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(d.abs(rel))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove proof: %w", err)
	}
	return nil
}

func (d Disk) abs(rel string) string {
	return filepath.Join(d.Root, filepath.Clean("/"+rel))
}

// Open returns a stored file by its relative path.
func (d Disk) Open(rel string) (*os.File, error) {
	return os.Open(d.abs(rel))
}
