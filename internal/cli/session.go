package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Profile is the operator login saved between empirectl invocations.
type Profile struct {
	APIBaseURL string `json:"api_base_url"`
	AdminToken string `json:"admin_token"`
}

var ErrNoProfile = errors.New("no saved profile")

// baseDir is a variable so tests can point it at a temp dir.
var baseDir = func() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".empirectl")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

func profilePath() (string, error) {
	dir, err := baseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "profile.json"), nil
}

func SaveProfile(p Profile) error {
	path, err := profilePath()
	if err != nil {
		return err
	}
	body, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, body, 0o600); err != nil {
		return err
	}
	return nil
}

func LoadProfile() (Profile, error) {
	path, err := profilePath()
	if err != nil {
		return Profile{}, err
	}
	body, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Profile{}, ErrNoProfile
		}
		return Profile{}, err
	}
	var p Profile
	if err := json.Unmarshal(body, &p); err != nil {
		return Profile{}, err
	}
	if strings.TrimSpace(p.AdminToken) == "" {
		return Profile{}, fmt.Errorf("no admin token found in profile")
	}
	return p, nil
}

func ClearProfile() error {
	path, err := profilePath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return os.Remove(path)
}
