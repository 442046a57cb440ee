package util

import (
	"os"
	"path/filepath"
)

func PathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// CreateDirIfNotExists 必须分成两步：先创建文件夹、再修改权限
func CreateDirIfNotExists(path string, perm os.FileMode) error {
	if err := os.MkdirAll(path, perm); err != nil {
		return err
	}
	return os.Chmod(path, perm)
}

// CreateFileExclusive opens path with O_CREATE|O_EXCL; it fails with an
// os.IsExist error when the file is already there.
func CreateFileExclusive(path string, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
}

// WriteFileExclusive creates path exclusively, writes content and fsyncs
// both the file and its directory. Once the file is created, any later
// failure removes it again so the call can be retried.
func WriteFileExclusive(path string, content []byte, perm os.FileMode) error {
	return writeFileExclusive(path, perm, func(f *os.File) error {
		_, err := f.Write(content)
		return err
	})
}

func writeFileExclusive(path string, perm os.FileMode, write func(*os.File) error) (err error) {
	f, err := CreateFileExclusive(path, perm)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(path)
		}
	}()

	if err = write(f); err != nil {
		f.Close()
		return err
	}
	if err = f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return SyncDir(filepath.Dir(path))
}

// SyncDir fsyncs a directory so a newly created entry survives a crash.
func SyncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
