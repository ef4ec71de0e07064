package storage

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// Location is a parsed artifact location.
type Location struct {
	// Bucket is set for s3:// locations.
	Bucket string

	// Dir is the store root: a directory for local paths, a key prefix for
	// S3.
	Dir string

	// Name is the file name within Dir.
	Name string
}

// IsS3 reports whether the location is an object store URL.
func (l Location) IsS3() bool { return l.Bucket != "" }

func (l Location) String() string {
	if l.IsS3() {
		return "s3://" + l.Bucket + "/" + path.Join(l.Dir, l.Name)
	}
	return filepath.Join(l.Dir, l.Name)
}

// ParseLocation splits a filesystem path or s3://bucket/key URL.
func ParseLocation(loc string) (Location, error) {
	if loc == "" {
		return Location{}, fmt.Errorf("storage: empty location")
	}
	if !strings.HasPrefix(loc, "s3://") {
		return Location{Dir: filepath.Dir(loc), Name: filepath.Base(loc)}, nil
	}
	u, err := url.Parse(loc)
	if err != nil {
		return Location{}, fmt.Errorf("storage: parse %q: %w", loc, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" || strings.HasSuffix(key, "/") {
		return Location{}, fmt.Errorf("storage: %q must name s3://bucket/key", loc)
	}
	dir, name := path.Split(key)
	return Location{Bucket: u.Host, Dir: strings.TrimSuffix(dir, "/"), Name: name}, nil
}

// Open resolves loc to a FileStore and the file name within it. newClient
// is only called for s3:// locations.
func Open(loc string, newClient func() S3Client) (FileStore, string, error) {
	l, err := ParseLocation(loc)
	if err != nil {
		return nil, "", err
	}
	if l.IsS3() {
		if newClient == nil {
			return nil, "", fmt.Errorf("storage: no s3 client for %s", loc)
		}
		return NewS3(newClient(), l.Bucket, l.Dir), l.Name, nil
	}
	local, err := NewLocal(l.Dir)
	if err != nil {
		return nil, "", err
	}
	return local, l.Name, nil
}
