// Package config loads the user, sprint and repository catalogs and the
// application settings.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Sumatoshi-tech/sprintstats/pkg/identity"
	"github.com/Sumatoshi-tech/sprintstats/pkg/model"
)

// Catalog validation errors.
var (
	ErrDuplicateAlias = identity.ErrDuplicateAlias
	ErrDuplicateEntry = errors.New("duplicate catalog entry")
	ErrInvalidSprint  = errors.New("sprint ends before it starts")
	ErrNoSprints      = model.ErrNoSprints
)

// Catalog names, also the names of the embedded schemas.
const (
	CatalogUsers        = "users"
	CatalogSprints      = "sprints"
	CatalogRepositories = "repositories"
)

// Catalogs is the fully validated input of a run.
type Catalogs struct {
	Users        []model.User
	Sprints      []model.Sprint
	Repositories []model.Repository
}

// CatalogPaths locates the three catalog files.
type CatalogPaths struct {
	Users        string
	Sprints      string
	Repositories string
}

// LoadCatalogs reads and validates all three catalogs. Problems in different
// files are joined so a single pass reports all of them.
func LoadCatalogs(paths CatalogPaths) (*Catalogs, error) {
	users, usersErr := LoadUsers(paths.Users)
	sprints, sprintsErr := LoadSprints(paths.Sprints)
	repos, reposErr := LoadRepositories(paths.Repositories)

	err := errors.Join(usersErr, sprintsErr, reposErr)
	if err != nil {
		return nil, err
	}

	return &Catalogs{Users: users, Sprints: sprints, Repositories: repos}, nil
}

// LoadUsers reads the user catalog at path.
func LoadUsers(path string) ([]model.User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read users: %w", err)
	}

	return ParseUsers(data)
}

// LoadSprints reads the sprint catalog at path.
func LoadSprints(path string) ([]model.Sprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sprints: %w", err)
	}

	return ParseSprints(data)
}

// LoadRepositories reads the repository catalog at path.
func LoadRepositories(path string) ([]model.Repository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read repositories: %w", err)
	}

	return ParseRepositories(data)
}

type userEntry struct {
	AvatarURL string   `json:"avatarUrl"`
	Role      string   `json:"role"`
	Teams     []string `json:"teams"`
	Emails    []string `json:"emails"`
}

// ParseUsers decodes a user catalog: a JSON object keyed by username.
// Users keep file order. An email listed under two users is rejected.
func ParseUsers(data []byte) ([]model.User, error) {
	var users []model.User

	err := decodeCatalog(CatalogUsers, data, func(name string, e userEntry) error {
		users = append(users, model.User{
			Username:  name,
			AvatarURL: e.AvatarURL,
			Role:      e.Role,
			Teams:     e.Teams,
			Emails:    e.Emails,
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	err = checkAliases(users)
	if err != nil {
		return nil, err
	}

	return users, nil
}

func checkAliases(users []model.User) error {
	_, err := identity.NewIndex(users)

	return err
}

type sprintEntry struct {
	Since string `json:"since"`
	Until string `json:"until"`
}

// ParseSprints decodes a sprint catalog: a JSON object keyed by sprint name with
// RFC3339 bounds. Sprints keep file order.
func ParseSprints(data []byte) ([]model.Sprint, error) {
	var sprints []model.Sprint

	err := decodeCatalog(CatalogSprints, data, func(name string, e sprintEntry) error {
		since, err := parseBound(name, e.Since)
		if err != nil {
			return err
		}

		until, err := parseBound(name, e.Until)
		if err != nil {
			return err
		}

		if since.After(until) {
			return fmt.Errorf("%w: sprint %q", ErrInvalidSprint, name)
		}

		sprints = append(sprints, model.Sprint{Name: name, Since: since, Until: until})

		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(sprints) == 0 {
		return nil, ErrNoSprints
	}

	return sprints, nil
}

// parseBound parses a sprint bound. Unlike event timestamps a bound is never optional.
func parseBound(sprint, value string) (time.Time, error) {
	ts, err := model.ParseTimestamp(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("sprint %q: %w", sprint, err)
	}

	if !ts.Valid {
		return time.Time{}, fmt.Errorf("sprint %q: %w: empty bound", sprint, model.ErrMalformedTimestamp)
	}

	return ts.Time, nil
}

type repositoryEntry struct {
	SSH    string `json:"ssh"`
	Branch string `json:"branch"`
	Owner  string `json:"owner"`
}

// ParseRepositories decodes a repository catalog: a JSON object keyed by
// repository name. Repositories keep file order.
func ParseRepositories(data []byte) ([]model.Repository, error) {
	var repos []model.Repository

	err := decodeCatalog(CatalogRepositories, data, func(name string, e repositoryEntry) error {
		repos = append(repos, model.Repository{
			Name:   name,
			SSH:    e.SSH,
			Branch: e.Branch,
			Owner:  e.Owner,
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return repos, nil
}

// decodeCatalog validates data against the catalog schema, then walks the top
// level object in document order and hands every entry to fn.
func decodeCatalog[E any](catalog string, data []byte, fn func(name string, entry E) error) error {
	err := validateSchema(catalog, data)
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(data))

	_, err = dec.Token() // Opening brace; the schema guarantees an object.
	if err != nil {
		return fmt.Errorf("decode %s: %w", catalog, err)
	}

	seen := make(map[string]struct{})

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode %s: %w", catalog, err)
		}

		name, _ := tok.(string)

		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: %s entry %q", ErrDuplicateEntry, catalog, name)
		}

		seen[name] = struct{}{}

		var entry E

		err = dec.Decode(&entry)
		if err != nil {
			return fmt.Errorf("decode %s entry %q: %w", catalog, name, err)
		}

		err = fn(name, entry)
		if err != nil {
			return err
		}
	}

	return nil
}
