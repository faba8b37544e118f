// Package settings reads and writes, through SettingsStore with no
// in-process cache, the process-wide GlobalSettings of spec.md section 3/6: the global worker
// auth pair and the admin credential. Passwords are never read back in
// full, only a has_password flag, per spec.md section 6.
package settings

import (
	"context"
	"fmt"

	"github.com/comfygw/gateway/internal/registry"
	"github.com/comfygw/gateway/internal/store"
)

const (
	keyGlobalWorkerUsername = "global_worker_username"
	keyGlobalWorkerPassword = "global_worker_password"
	keyAdminUsername        = "admin_username"
	keyAdminPassword        = "admin_password"
)

// GlobalAuth is the reportable shape of the global worker credential: the
// username in full, the password only as a presence flag.
type GlobalAuth struct {
	Username    string `json:"username"`
	HasPassword bool   `json:"has_password"`
}

// Service reads the SettingsStore on every call (nothing is cached in
// process), and keeps the worker registry's global auth fallback in sync
// with persisted settings.
type Service struct {
	store store.SettingsStore
	reg   *registry.Registry
}

// New builds a Service and primes the registry's global auth fallback from
// whatever is already persisted.
func New(ctx context.Context, settingsStore store.SettingsStore, reg *registry.Registry) (*Service, error) {
	s := &Service{store: settingsStore, reg: reg}
	username, _, err := s.getRaw(ctx, keyGlobalWorkerUsername)
	if err != nil {
		return nil, fmt.Errorf("settings: load global worker username: %w", err)
	}
	password, _, err := s.getRaw(ctx, keyGlobalWorkerPassword)
	if err != nil {
		return nil, fmt.Errorf("settings: load global worker password: %w", err)
	}
	if reg != nil {
		reg.SetGlobalAuth(username, password)
	}
	return s, nil
}

func (s *Service) getRaw(ctx context.Context, key string) (string, bool, error) {
	return s.store.Get(ctx, key)
}

// GetGlobalWorkerAuth returns the global worker auth pair's reportable
// shape: username plus whether a password is set, never the password
// itself.
func (s *Service) GetGlobalWorkerAuth(ctx context.Context) (GlobalAuth, error) {
	username, _, err := s.getRaw(ctx, keyGlobalWorkerUsername)
	if err != nil {
		return GlobalAuth{}, fmt.Errorf("settings: get global worker auth: %w", err)
	}
	_, hasPassword, err := s.getRaw(ctx, keyGlobalWorkerPassword)
	if err != nil {
		return GlobalAuth{}, fmt.Errorf("settings: get global worker auth: %w", err)
	}
	return GlobalAuth{Username: username, HasPassword: hasPassword}, nil
}

// SetGlobalWorkerAuth persists the global worker auth pair and immediately
// refreshes the registry's fallback accessor.
func (s *Service) SetGlobalWorkerAuth(ctx context.Context, username, password string) error {
	if err := s.store.Set(ctx, keyGlobalWorkerUsername, username); err != nil {
		return fmt.Errorf("settings: set global worker username: %w", err)
	}
	if err := s.store.Set(ctx, keyGlobalWorkerPassword, password); err != nil {
		return fmt.Errorf("settings: set global worker password: %w", err)
	}
	if s.reg != nil {
		s.reg.SetGlobalAuth(username, password)
	}
	return nil
}

// GetAdminAuth returns the admin credential's reportable shape.
func (s *Service) GetAdminAuth(ctx context.Context) (GlobalAuth, error) {
	username, _, err := s.getRaw(ctx, keyAdminUsername)
	if err != nil {
		return GlobalAuth{}, fmt.Errorf("settings: get admin auth: %w", err)
	}
	_, hasPassword, err := s.getRaw(ctx, keyAdminPassword)
	if err != nil {
		return GlobalAuth{}, fmt.Errorf("settings: get admin auth: %w", err)
	}
	return GlobalAuth{Username: username, HasPassword: hasPassword}, nil
}

// SetAdminAuth persists the admin credential, consumed by the
// out-of-scope admin-login collaborator via internal/adminauth.
func (s *Service) SetAdminAuth(ctx context.Context, username, password string) error {
	if err := s.store.Set(ctx, keyAdminUsername, username); err != nil {
		return fmt.Errorf("settings: set admin username: %w", err)
	}
	if err := s.store.Set(ctx, keyAdminPassword, password); err != nil {
		return fmt.Errorf("settings: set admin password: %w", err)
	}
	return nil
}
