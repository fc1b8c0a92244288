package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Loader locates the newest valid bundle, preferring local disk over the
// object store.
type Loader struct {
	basePath string
	prefix   string
	bucket   string
	store    ObjectStore
	log      *zap.Logger
}

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	BasePath string      // local directory holding bundle dirs
	Prefix   string      // bundle dir name prefix, DefaultPrefix when empty
	Bucket   string      // remote bucket; empty disables the remote fallback
	Store    ObjectStore // nil disables the remote fallback
	Logger   *zap.Logger
}

// NewLoader creates a Loader.
func NewLoader(opts LoaderOptions) *Loader {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.BasePath == "" {
		opts.BasePath = "."
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Loader{
		basePath: opts.BasePath,
		prefix:   opts.Prefix,
		bucket:   opts.Bucket,
		store:    opts.Store,
		log:      opts.Logger.Named("artifact"),
	}
}

// Resolve returns the directory of the newest valid local bundle, or
// downloads the newest remote bundle into the base path.
func (l *Loader) Resolve(ctx context.Context) (string, error) {
	if dir, ok := l.findLocal(); ok {
		l.log.Info("using_existing_local_model", zap.String("path", dir))
		return dir, nil
	}

	if l.store == nil || l.bucket == "" {
		l.log.Warn("no_valid_local_model_and_no_remote_configured", zap.String("base_path", l.basePath))
		return "", ErrNoModel
	}

	l.log.Info("no_valid_local_model_found_attempting_s3_download", zap.String("bucket", l.bucket))
	dir, err := l.download(ctx)
	if err != nil {
		l.log.Error("model_download_error", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrNoModel, err)
	}
	if err := Validate(dir); err != nil {
		return "", fmt.Errorf("%w: downloaded bundle: %v", ErrNoModel, err)
	}
	l.log.Info("using_downloaded_model", zap.String("path", dir))
	return dir, nil
}

// Load resolves and loads the bundle. The directory is returned for logs
// and status reporting.
func (l *Loader) Load(ctx context.Context) (*Bundle, string, error) {
	dir, err := l.Resolve(ctx)
	if err != nil {
		return nil, "", err
	}
	b, err := Load(dir)
	if err != nil {
		return nil, "", err
	}
	return b, dir, nil
}

// findLocal returns the newest directory matching the prefix that holds a
// complete bundle.
func (l *Loader) findLocal() (string, bool) {
	matches, err := filepath.Glob(filepath.Join(l.basePath, l.prefix+"*"))
	if err != nil || len(matches) == 0 {
		l.log.Warn("no_local_model_directory_found", zap.String("pattern", filepath.Join(l.basePath, l.prefix+"*")))
		return "", false
	}
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))

	for _, dir := range matches {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		if err := Validate(dir); err != nil {
			l.log.Warn("skipping_incomplete_model_directory", zap.String("path", dir), zap.Error(err))
			continue
		}
		return dir, true
	}
	return "", false
}

// download fetches the newest remote bundle prefix into the base path.
func (l *Loader) download(ctx context.Context) (string, error) {
	keys, err := l.store.List(ctx, l.bucket, l.prefix)
	if err != nil {
		return "", err
	}

	dirs := make(map[string][]string)
	for _, key := range keys {
		name, file, ok := strings.Cut(key, "/")
		if !ok || file == "" || strings.Contains(file, "/") {
			continue
		}
		dirs[name] = append(dirs[name], key)
	}
	if len(dirs) == 0 {
		return "", fmt.Errorf("no model directories under s3://%s/%s", l.bucket, l.prefix)
	}

	names := make([]string, 0, len(dirs))
	for name := range dirs {
		names = append(names, name)
	}
	sort.Strings(names)
	latest := names[len(names)-1]
	l.log.Info("selected_latest_model", zap.String("s3_dir", latest), zap.Int("files", len(dirs[latest])))

	local := filepath.Join(l.basePath, latest)
	for _, key := range dirs[latest] {
		dst := filepath.Join(local, filepath.Base(key))
		if err := l.store.Download(ctx, l.bucket, key, dst); err != nil {
			return "", err
		}
	}
	return local, nil
}
