package blob

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	gocache "github.com/patrickmn/go-cache"
)

// Object describes one stored blob.
type Object struct {
	Key      string    `json:"key"`
	URL      string    `json:"url"`
	Size     int64     `json:"size"`
	Uploaded time.Time `json:"uploadedAt"`
}

// Store is the persistence surface for generated images. Keys follow the
// form <project>-<sequence>.<ext>.
type Store interface {
	Put(key string, data []byte) (Object, error)
	Get(key string) ([]byte, error)
	List(prefix string) ([]Object, error)
	Delete(key string) error
	// NextSequence returns one past the highest sequence number currently
	// stored under project, starting at 1 for an empty project.
	NextSequence(project string) (int, error)
}

var keySequenceRX = regexp.MustCompile(`-(\d+)\.[A-Za-z0-9]+$`)

// DiskStore keeps blobs as files under a root directory and serves them from
// a URL prefix. Listings are cached briefly since the gallery polls them.
type DiskStore struct {
	root      string
	urlPrefix string
	listings  *gocache.Cache
}

func NewDiskStore(root, urlPrefix string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &DiskStore{
		root:      root,
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
		listings:  gocache.New(30*time.Second, time.Minute),
	}, nil
}

func (d *DiskStore) path(key string) (string, error) {
	clean := filepath.Base(key)
	if clean != key || key == "" || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(d.root, clean), nil
}

func (d *DiskStore) Put(key string, data []byte) (Object, error) {
	path, err := d.path(key)
	if err != nil {
		return Object{}, err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return Object{}, fmt.Errorf("write blob %s: %w", key, err)
	}
	d.listings.Flush()
	log.Debug("stored blob", "key", key, "bytes", len(data))
	return Object{
		Key:      key,
		URL:      d.urlPrefix + "/" + key,
		Size:     int64(len(data)),
		Uploaded: time.Now(),
	}, nil
}

func (d *DiskStore) Get(key string) ([]byte, error) {
	path, err := d.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", key, err)
	}
	return data, nil
}

// List returns objects whose key starts with prefix, newest first.
func (d *DiskStore) List(prefix string) ([]Object, error) {
	if cached, ok := d.listings.Get(prefix); ok {
		return cached.([]Object), nil
	}

	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}

	var objects []Object
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		objects = append(objects, Object{
			Key:      entry.Name(),
			URL:      d.urlPrefix + "/" + entry.Name(),
			Size:     info.Size(),
			Uploaded: info.ModTime(),
		})
	}
	sort.Slice(objects, func(i, j int) bool {
		return objects[i].Uploaded.After(objects[j].Uploaded)
	})

	d.listings.Set(prefix, objects, gocache.DefaultExpiration)
	return objects, nil
}

func (d *DiskStore) Delete(key string) error {
	path, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob %s: %w", key, err)
	}
	d.listings.Flush()
	return nil
}

func (d *DiskStore) NextSequence(project string) (int, error) {
	objects, err := d.List(project + "-")
	if err != nil {
		return 0, err
	}
	highest := 0
	for _, obj := range objects {
		if n, ok := SequenceOf(obj.Key); ok && n > highest {
			highest = n
		}
	}
	return highest + 1, nil
}

// SequenceOf extracts the numeric sequence from a blob key, reporting false
// for keys that do not follow the <project>-<sequence>.<ext> form.
func SequenceOf(key string) (int, bool) {
	m := keySequenceRX.FindStringSubmatch(key)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Key builds the canonical blob key for a project image.
func Key(project string, sequence int, ext string) string {
	return fmt.Sprintf("%s-%d.%s", project, sequence, strings.TrimPrefix(ext, "."))
}
