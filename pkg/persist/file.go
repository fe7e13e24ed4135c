package persist

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/chainsafe/crowdfund-client/pkg/campaign"
	"github.com/chainsafe/crowdfund-client/pkg/notification"
	"github.com/chainsafe/crowdfund-client/pkg/persist/dao"
)

// Snapshot file names inside the persistence directory
const (
	CampaignFile     = "campaign-storage.yaml"
	NotificationFile = "notification-storage.yaml"
	ChainStateFile   = "chain-state.yaml"
)

type campaignDocument struct {
	Campaigns []*dao.CampaignDao `yaml:"campaigns"`
}

type notificationDocument struct {
	Notifications []notification.Notification `yaml:"notifications"`
}

type chainStateDocument struct {
	Chains []dao.ChainStateDao `yaml:"chains"`
}

// FileStore keeps snapshots as YAML documents in a directory. Writes go to a
// temporary file that is renamed over the target.
type FileStore struct {
	dir    string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewFileStore creates dir if needed and returns a store rooted there
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create persistence dir: %w", err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

func (s *FileStore) LoadCampaigns(_ context.Context) ([]campaign.Campaign, error) {
	var doc campaignDocument
	if err := s.read(CampaignFile, &doc); err != nil {
		return nil, err
	}

	out := make([]campaign.Campaign, 0, len(doc.Campaigns))
	for _, row := range doc.Campaigns {
		if row == nil {
			continue
		}
		c, err := row.ToCampaign()
		if err != nil {
			s.logger.Warn("Skipping unreadable campaign entry", zap.Uint64("campaign_id", row.ID), zap.Error(err))
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *FileStore) SaveCampaigns(_ context.Context, campaigns []campaign.Campaign) error {
	doc := campaignDocument{Campaigns: make([]*dao.CampaignDao, 0, len(campaigns))}
	for _, c := range campaigns {
		doc.Campaigns = append(doc.Campaigns, dao.FromCampaign(c))
	}
	return s.write(CampaignFile, &doc)
}

func (s *FileStore) LoadNotifications(_ context.Context) ([]notification.Notification, error) {
	var doc notificationDocument
	if err := s.read(NotificationFile, &doc); err != nil {
		return nil, err
	}
	return doc.Notifications, nil
}

func (s *FileStore) SaveNotifications(_ context.Context, items []notification.Notification) error {
	doc := notificationDocument{Notifications: items}
	if doc.Notifications == nil {
		doc.Notifications = []notification.Notification{}
	}
	return s.write(NotificationFile, &doc)
}

func (s *FileStore) LoadCursor(_ context.Context, chainID int64) (uint64, error) {
	var doc chainStateDocument
	if err := s.read(ChainStateFile, &doc); err != nil {
		return 0, err
	}
	for _, c := range doc.Chains {
		if c.ChainID == chainID {
			return c.LastBlock, nil
		}
	}
	return 0, ErrNoCursor
}

func (s *FileStore) SaveCursor(_ context.Context, chainID int64, block uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var doc chainStateDocument
	if err := s.readLocked(ChainStateFile, &doc); err != nil {
		return err
	}

	found := false
	for i := range doc.Chains {
		if doc.Chains[i].ChainID == chainID {
			doc.Chains[i].LastBlock = block
			found = true
		}
	}
	if !found {
		doc.Chains = append(doc.Chains, dao.ChainStateDao{ChainID: chainID, LastBlock: block})
	}
	return s.writeLocked(ChainStateFile, &doc)
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) read(name string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked(name, v)
}

// readLocked decodes the named file into v. A missing file leaves v empty.
func (s *FileStore) readLocked(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) write(name string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(name, v)
}

func (s *FileStore) writeLocked(name string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", name, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}
