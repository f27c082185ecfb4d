package verify

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
)

// WatchURL returns the canonical watch URL for a video id.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

// ReadIDs reads the identifiers file at path.
func ReadIDs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseIDs(f)
}

// ParseIDs reads one identifier per line. Blank lines are skipped and watch,
// short-link and shorts URLs are reduced to the bare id.
func ParseIDs(r io.Reader) ([]string, error) {
	var ids []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ids = append(ids, NormalizeID(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ids: %w", err)
	}
	return ids, nil
}

// NormalizeID extracts the video id from a YouTube URL. Anything that is not
// a recognised URL is returned unchanged.
func NormalizeID(value string) string {
	value = strings.TrimSpace(value)
	if !strings.Contains(value, "/") {
		return value
	}
	raw := value
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return value
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	path := strings.Trim(u.Path, "/")
	switch {
	case host == "youtu.be":
		if id, _, _ := strings.Cut(path, "/"); id != "" {
			return id
		}
	case host == "youtube.com" || host == "music.youtube.com":
		if path == "watch" {
			if id := u.Query().Get("v"); id != "" {
				return id
			}
		}
		for _, prefix := range []string{"shorts/", "embed/", "live/"} {
			if rest, ok := strings.CutPrefix(path, prefix); ok && rest != "" {
				id, _, _ := strings.Cut(rest, "/")
				return id
			}
		}
	}
	return value
}

// Batches splits ids into consecutive chunks of at most size.
func Batches(ids []string, size int) [][]string {
	if size <= 0 {
		size = 1
	}
	var batches [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		batches = append(batches, ids[start:end])
	}
	return batches
}
