package remote

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
)

// uploadTree copies the local file or directory src to dst on the remote
// side, creating directories as needed.
func uploadTree(sc *sftp.Client, src, dst string, log zerolog.Logger) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	if !info.IsDir() {
		return uploadFile(sc, src, dst, info.Mode().Perm(), log)
	}

	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := path.Join(dst, filepath.ToSlash(rel))

		if d.IsDir() {
			if err := sc.MkdirAll(target); err != nil {
				return fmt.Errorf("mkdir %s: %w", target, err)
			}
			return nil
		}
		if !d.Type().IsRegular() {
			log.Debug().Str("path", p).Msg("skipping non-regular file")
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return uploadFile(sc, p, target, info.Mode().Perm(), log)
	})
}

func uploadFile(sc *sftp.Client, src, dst string, mode os.FileMode, log zerolog.Logger) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer f.Close()

	return writeRemoteFile(sc, dst, f, mode, log)
}

func writeRemoteFile(sc *sftp.Client, dst string, r io.Reader, mode os.FileMode, log zerolog.Logger) error {
	if err := sc.MkdirAll(path.Dir(dst)); err != nil {
		return fmt.Errorf("mkdir %s: %w", path.Dir(dst), err)
	}

	out, err := sc.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}

	if err := sc.Chmod(dst, mode); err != nil {
		log.Debug().Err(err).Str("path", dst).Msg("failed to set remote file mode")
	}
	return nil
}

// downloadTree copies the remote file or directory src to dst locally.
func downloadTree(sc *sftp.Client, src, dst string, log zerolog.Logger) error {
	walker := sc.Walk(src)
	for walker.Step() {
		if err := walker.Err(); err != nil {
			return fmt.Errorf("walk %s: %w", walker.Path(), err)
		}

		rel, err := relRemote(src, walker.Path())
		if err != nil {
			return err
		}
		target := filepath.Join(dst, filepath.FromSlash(rel))
		info := walker.Stat()

		switch {
		case info.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("mkdir %s: %w", target, err)
			}
		case info.Mode().IsRegular():
			if err := downloadFile(sc, walker.Path(), target, info.Mode().Perm()); err != nil {
				return err
			}
		default:
			log.Debug().Str("path", walker.Path()).Msg("skipping non-regular file")
		}
	}
	return nil
}

func downloadFile(sc *sftp.Client, src, dst string, mode os.FileMode) error {
	in, err := sc.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(dst), err)
	}
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	return out.Close()
}

// relRemote returns p relative to root using slash-separated remote paths.
func relRemote(root, p string) (string, error) {
	root = path.Clean(root)
	p = path.Clean(p)
	if p == root {
		return ".", nil
	}
	prefix := root + "/"
	if root == "/" {
		prefix = "/"
	}
	if len(p) <= len(prefix) || p[:len(prefix)] != prefix {
		return "", fmt.Errorf("path %s is outside %s", p, root)
	}
	return p[len(prefix):], nil
}
