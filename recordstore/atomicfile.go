package recordstore

import (
	"bufio"
	"os"
	"path/filepath"
)

// writeFileAtomic replaces path with the bytes produced by fill. The data is
// written to a temporary file in the same directory, synced and renamed over
// the target. On any error the target is left untouched.
func writeFileAtomic(
	path string,
	perm os.FileMode,
	fill func(w *bufio.Writer) error,
) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}

	if err := tmp.Chmod(perm); err != nil {
		return fail(err)
	}

	bw := bufio.NewWriter(tmp)
	if err := fill(bw); err != nil {
		return fail(err)
	}

	if err := bw.Flush(); err != nil {
		return fail(err)
	}

	if err := tmp.Sync(); err != nil {
		return fail(err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	// Best effort, some platforms cannot sync a directory.
	_ = syncDir(dir)

	return nil
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()

	return f.Sync()
}
