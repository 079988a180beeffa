// Package shm publishes a compiled topology into a shared memory file
// where the realtime side maps it.
package shm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/KevinKickass/ecconf/internal/records"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

const DefaultPath = "/dev/shm/ecconf"

// Publisher owns the destination file for the lifetime of the process.
type Publisher struct {
	path   string
	logger *zap.Logger
}

// Result describes what a consumer will see.
type Result struct {
	Size    int
	Records int
}

func NewPublisher(path string, logger *zap.Logger) *Publisher {
	if path == "" {
		path = DefaultPath
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{path: path, logger: logger}
}

func (p *Publisher) Path() string {
	return p.path
}

// Publish writes blob through a shared mapping of a temporary file next
// to the destination, walks the mapped bytes the way a consumer would and
// only then renames the file into place. A failed publish leaves the
// previous image untouched.
func (p *Publisher) Publish(blob []byte) (Result, error) {
	if len(blob) < records.HeaderSize {
		return Result{}, fmt.Errorf("blob too short: %d bytes", len(blob))
	}

	dir, base := filepath.Split(p.path)
	if dir == "" {
		dir = "."
	}
	f, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return Result{}, fmt.Errorf("failed to create image for %s: %w", p.path, err)
	}
	tmp := f.Name()
	committed := false
	defer func() {
		if !committed {
			f.Close()
			os.Remove(tmp)
		}
	}()

	res, err := p.writeImage(f, blob)
	if err != nil {
		return Result{}, err
	}
	if err := f.Chmod(0o644); err != nil {
		return Result{}, fmt.Errorf("failed to chmod %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return Result{}, fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return Result{}, fmt.Errorf("failed to install %s: %w", p.path, err)
	}
	committed = true

	p.logger.Info("Configuration published",
		zap.String("path", p.path),
		zap.Int("size", res.Size),
		zap.Int("records", res.Records))

	return res, nil
}

func (p *Publisher) writeImage(f *os.File, blob []byte) (Result, error) {
	fd := int(f.Fd())
	if err := unix.Ftruncate(fd, int64(len(blob))); err != nil {
		return Result{}, fmt.Errorf("failed to size %s: %w", f.Name(), err)
	}

	mem, err := unix.Mmap(fd, 0, len(blob), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return Result{}, fmt.Errorf("failed to map %s: %w", f.Name(), err)
	}
	defer func() {
		if err := unix.Munmap(mem); err != nil {
			p.logger.Warn("Failed to unmap", zap.String("path", f.Name()), zap.Error(err))
		}
	}()

	copy(mem, blob)
	if err := unix.Msync(mem, unix.MS_SYNC); err != nil {
		return Result{}, fmt.Errorf("failed to sync %s: %w", f.Name(), err)
	}

	res := Result{Size: len(mem)}
	if err := records.Walk(mem, func(records.Record) error {
		res.Records++
		return nil
	}); err != nil {
		return Result{}, fmt.Errorf("published image is unreadable: %w", err)
	}
	return res, nil
}

// Remove deletes the destination. A missing file is not an error.
func (p *Publisher) Remove() error {
	err := os.Remove(p.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", p.path, err)
	}
	return nil
}

// Mapping is a read-only view of a published image.
type Mapping struct {
	data []byte
}

// Map opens a published image the way a consumer does.
func Map(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if st.Size() < int64(records.HeaderSize) {
		return nil, fmt.Errorf("%s: %w", path, records.ErrTruncated)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(st.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("failed to map %s: %w", path, err)
	}
	return &Mapping{data: data}, nil
}

func (m *Mapping) Bytes() []byte {
	return m.data
}

func (m *Mapping) Close() error {
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	return err
}
