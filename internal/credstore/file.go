package credstore

import (
	"context"
	"encoding/json"
	"os"
)

type fileStore struct {
	path string
}

type fileRecord struct {
	Token string `json:"token"`
}

func NewFile(path string) Store {
	if path == "" {
		path = "secdash-token.json"
	}
	return &fileStore{path: path}
}

func (s *fileStore) Init(ctx context.Context) error {
	return nil
}

func (s *fileStore) Get(ctx context.Context) (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", err
	}
	return rec.Token, nil
}

func (s *fileStore) Set(ctx context.Context, token string) error {
	data, err := json.Marshal(fileRecord{Token: token})
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *fileStore) Clear(ctx context.Context) error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *fileStore) Close() error {
	return nil
}
