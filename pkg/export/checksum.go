package export

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrChecksumMismatch is returned by Verify when a listed file does not match.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrUnsafePath is returned by Verify for entries outside the manifest's directory.
	ErrUnsafePath = errors.New("unsafe manifest path")
)

// FileDigest computes the hex SHA-256 of a file.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// WriteChecksums writes dir/verify_checksums.txt listing the digest of each
// file in sha256sum format. Comment lines carry the run ID and seed.
func WriteChecksums(dir, runID string, seed int64, files []string) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# SHA256 checksums\n# run_id: %s\n# seed: %d\n\n", runID, seed)
	for _, name := range files {
		sum, err := FileDigest(filepath.Join(dir, name))
		if err != nil {
			return "", fmt.Errorf("digest %s: %w", name, err)
		}
		fmt.Fprintf(&sb, "%s  %s\n", sum, name)
	}
	path := filepath.Join(dir, ChecksumFile)
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", ChecksumFile, err)
	}
	return path, nil
}

// Verify recomputes every digest listed in manifest. Paths are relative to the
// manifest's directory. All mismatching files are reported in one error.
func Verify(manifest string) (int, error) {
	f, err := os.Open(manifest)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dir := filepath.Dir(manifest)
	var bad []string
	checked := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		want, name, ok := strings.Cut(line, "  ")
		if !ok {
			return checked, fmt.Errorf("malformed manifest line %q", line)
		}
		if !localName(name) {
			return checked, fmt.Errorf("%w: %q", ErrUnsafePath, name)
		}
		got, err := FileDigest(filepath.Join(dir, name))
		if err != nil {
			return checked, fmt.Errorf("digest %s: %w", name, err)
		}
		checked++
		if got != want {
			bad = append(bad, name)
		}
	}
	if err := sc.Err(); err != nil {
		return checked, err
	}
	if len(bad) > 0 {
		return checked, fmt.Errorf("%w: %s", ErrChecksumMismatch, strings.Join(bad, ", "))
	}
	return checked, nil
}

// localName reports whether name stays inside the directory it is joined to.
func localName(name string) bool {
	if name == "" || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(name), "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
