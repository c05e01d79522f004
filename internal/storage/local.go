package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/visadesk/internal/config"
	paymentdomain "github.com/smallbiznis/visadesk/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// PublicPrefix is the URL path the upload directory is served under.
const PublicPrefix = "/uploads"

const voucherDir = "vouchers"

var ErrInvalidPath = errors.New("invalid_upload_path")

var Module = fx.Module("storage",
	fx.Provide(NewLocalStore),
	fx.Provide(func(s *LocalStore) paymentdomain.VoucherStore { return s }),
)

// LocalStore keeps uploads on the local filesystem below Root.
type LocalStore struct {
	root string
	log  *zap.Logger
}

func NewLocalStore(cfg config.Config, log *zap.Logger) (*LocalStore, error) {
	root := strings.TrimSpace(cfg.UploadDir)
	if root == "" {
		root = "uploads"
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(abs, voucherDir), 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{root: abs, log: log.Named("storage.local")}, nil
}

// Root returns the directory served at PublicPrefix.
func (s *LocalStore) Root() string {
	return s.root
}

// Save writes content under a collision-free name derived from filename and
// returns its public path.
func (s *LocalStore) Save(ctx context.Context, filename string, content io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := storedName(filename)
	target := filepath.Join(s.root, voucherDir, name)

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create voucher: %w", err)
	}
	if _, err := io.Copy(f, content); err != nil {
		f.Close()
		os.Remove(target)
		return "", fmt.Errorf("write voucher: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(target)
		return "", fmt.Errorf("close voucher: %w", err)
	}

	s.log.Debug("voucher stored", zap.String("file", name))
	return path.Join(PublicPrefix, voucherDir, name), nil
}

// Remove deletes a file previously returned by Save. Missing files are ignored.
func (s *LocalStore) Remove(ctx context.Context, publicPath string) error {
	target, err := s.resolve(publicPath)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStore) resolve(publicPath string) (string, error) {
	clean := path.Clean("/" + strings.TrimSpace(publicPath))
	if !strings.HasPrefix(clean, PublicPrefix+"/") {
		return "", ErrInvalidPath
	}
	rel := strings.TrimPrefix(clean, PublicPrefix+"/")
	target := filepath.Join(s.root, filepath.FromSlash(rel))
	if !strings.HasPrefix(target, s.root+string(filepath.Separator)) {
		return "", ErrInvalidPath
	}
	return target, nil
}

func storedName(filename string) string {
	base := filepath.Base(strings.TrimSpace(filename))
	ext := strings.ToLower(filepath.Ext(base))
	stem := slug.Make(strings.TrimSuffix(base, filepath.Ext(base)))
	id := strings.ToLower(ulid.Make().String())
	if stem == "" {
		return id + ext
	}
	if len(stem) > 48 {
		stem = stem[:48]
	}
	return id + "-" + stem + ext
}
