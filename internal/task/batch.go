package task

import (
	"errors"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/spf13/afero"
)

// batch downloads a numbered sequence of files (0.jpg .. N-1.jpg) as one
// task. Each file is streamed into a .tmp sibling; only when every file has
// arrived are they renamed into place. Any failure removes all temporary
// files of the batch and fails the task with a single error.
type batch struct {
	fs        afero.Fs
	transport Transport
	dir       string
	baseURL   string
	count     int
	opts      options

	index int
	cur   *fetch
	file  afero.File
	bytes int64
	files []string
	done  bool
	err   error
	warn  error
}

// BatchFileName returns the name of file i in a batch.
func BatchFileName(i int) string {
	return fmt.Sprintf("%d.jpg", i)
}

func (b *batch) finalPath(i int) string  { return path.Join(b.dir, BatchFileName(i)) }
func (b *batch) tempPath(i int) string   { return b.finalPath(i) + ".tmp" }
func (b *batch) backupPath(i int) string { return b.finalPath(i) + ".bak" }

func (b *batch) Start(now time.Time) error {
	if err := b.fs.MkdirAll(b.dir, 0o755); err != nil {
		b.done = true
		b.err = fmt.Errorf("create %s: %w", b.dir, err)
		return b.err
	}
	return b.open(now)
}

func (b *batch) open(now time.Time) error {
	f, err := b.fs.Create(b.tempPath(b.index))
	if err != nil {
		return b.abandon(fmt.Errorf("open %s: %w", b.tempPath(b.index), err))
	}
	b.file = f
	b.cur = newFetch(b.transport, b.baseURL+"/"+BatchFileName(b.index), f, b.opts)
	if err := b.cur.Start(now); err != nil {
		f.Close()
		return b.abandon(fmt.Errorf("fetch %s: %w", BatchFileName(b.index), err))
	}
	return nil
}

func (b *batch) Step(now time.Time) Outcome {
	if b.done {
		if b.err != nil {
			return Error
		}
		return Done
	}

	switch b.cur.Step(now) {
	case Running:
		return Running
	case Error:
		b.file.Close()
		b.abandon(fmt.Errorf("fetch %s: %w", BatchFileName(b.index), b.cur.err))
		return Error
	}

	if err := b.file.Close(); err != nil {
		b.abandon(fmt.Errorf("close %s: %w", b.tempPath(b.index), err))
		return Error
	}
	b.bytes += b.cur.n
	b.file = nil
	b.cur = nil
	b.index++
	if b.opts.kick != nil {
		b.opts.kick()
	}

	if b.index < b.count {
		if err := b.open(now); err != nil {
			return Error
		}
		return Running
	}
	return b.commit()
}

// commit swaps the batch into place. Files of a previous batch are first
// moved to .bak siblings so that a failed rename can restore them; the
// directory then holds either the old set or the new one, never a mix.
func (b *batch) commit() Outcome {
	var saved []int
	for i := 0; i < b.count; i++ {
		ok, err := afero.Exists(b.fs, b.finalPath(i))
		if err == nil && ok {
			err = b.fs.Rename(b.finalPath(i), b.backupPath(i))
		}
		if err != nil {
			b.abandon(errors.Join(fmt.Errorf("back up %s: %w", b.finalPath(i), err), b.restore(0, saved)))
			return Error
		}
		if ok {
			saved = append(saved, i)
		}
	}
	for i := 0; i < b.count; i++ {
		if err := b.fs.Rename(b.tempPath(i), b.finalPath(i)); err != nil {
			b.abandon(errors.Join(fmt.Errorf("rename %s: %w", b.tempPath(i), err), b.restore(i, saved)))
			return Error
		}
	}
	var errs []error
	for _, i := range saved {
		if err := b.fs.Remove(b.backupPath(i)); err != nil {
			errs = append(errs, err)
		}
	}
	for i := 0; i < b.count; i++ {
		b.files = append(b.files, b.finalPath(i))
	}
	b.done = true
	if len(errs) > 0 {
		// the new set is in place; stale backups only cost space
		b.warn = errors.Join(errs...)
	}
	return Done
}

// restore removes the first installed files and moves the saved ones back.
func (b *batch) restore(installed int, saved []int) error {
	var errs []error
	for i := 0; i < installed; i++ {
		if err := b.fs.Remove(b.finalPath(i)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", b.finalPath(i), err))
		}
	}
	for _, i := range saved {
		if err := b.fs.Rename(b.backupPath(i), b.finalPath(i)); err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", b.finalPath(i), err))
		}
	}
	return errors.Join(errs...)
}

// abandon removes every temporary file of the batch and records err, joined
// with any cleanup failure.
func (b *batch) abandon(err error) error {
	if b.cur != nil && b.cur.req != nil {
		b.cur.req.Close()
	}
	errs := []error{err}
	for i := 0; i < b.count; i++ {
		if rerr := b.fs.Remove(b.tempPath(i)); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", b.tempPath(i), rerr))
		}
	}
	b.done = true
	b.err = err
	if len(errs) > 1 {
		b.err = errors.Join(errs...)
	}
	return b.err
}

func (b *batch) Finished() bool {
	return b.done
}

func (b *batch) Result() Result {
	res := Result{Bytes: b.bytes, Err: b.err, Warning: b.warn}
	if b.err == nil {
		res.Code = 200
		res.Files = b.files
	}
	return res
}
