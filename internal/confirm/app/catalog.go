package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"github.com/aussiebroadwan/confirm/internal/confirm/chat"
	"github.com/aussiebroadwan/confirm/internal/confirm/directory"
	"github.com/aussiebroadwan/confirm/internal/confirm/domain"
	"gopkg.in/yaml.v3"
)

// Catalog is the installation's static description of who exists, which
// groups they are in, and which commands the gateway answers.
type Catalog struct {
	Users    []CatalogUser    `yaml:"users"`
	Commands []CatalogCommand `yaml:"commands"`
}

type CatalogUser struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Mention string   `yaml:"mention"`
	Groups  []string `yaml:"groups"`
}

// CatalogCommand is a canned-reply command. Reply may reference pattern
// submatches as $1, $2 and so on.
type CatalogCommand struct {
	Name         string                `yaml:"name"`
	Pattern      string                `yaml:"pattern"`
	Reply        string                `yaml:"reply"`
	Confirmation *CatalogConfirmation `yaml:"confirmation"`

	pattern *regexp.Regexp
	spec    *domain.RouteSpec
}

// CatalogConfirmation mirrors domain.RouteSpec. Absent booleans take the
// RouteSpec defaults.
type CatalogConfirmation struct {
	Required    *bool    `yaml:"required"`
	AllowSelf   *bool    `yaml:"allow_self"`
	RestrictTo  []string `yaml:"restrict_to"`
	ExpireAfter string   `yaml:"expire_after"`
	TwoFactor   string   `yaml:"twofactor"`
}

// LoadCatalog reads and validates a catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML catalog. Every command pattern and
// confirmation block is checked here, so a typo in a twofactor value stops
// startup.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	for i, u := range c.Users {
		if u.ID == "" {
			return nil, fmt.Errorf("catalog: user %d has no id", i)
		}
	}

	names := make(map[string]bool, len(c.Commands))
	for i := range c.Commands {
		cmd := &c.Commands[i]
		if cmd.Name == "" {
			return nil, fmt.Errorf("catalog: command %d has no name", i)
		}
		if names[cmd.Name] {
			return nil, fmt.Errorf("catalog: duplicate command %q", cmd.Name)
		}
		names[cmd.Name] = true

		re, err := regexp.Compile(cmd.Pattern)
		if err != nil {
			return nil, fmt.Errorf("catalog: command %q: %w", cmd.Name, err)
		}
		cmd.pattern = re

		if cmd.Confirmation != nil {
			spec, err := cmd.Confirmation.routeSpec()
			if err != nil {
				return nil, fmt.Errorf("catalog: command %q: %w", cmd.Name, err)
			}
			cmd.spec = &spec
		}
	}
	return &c, nil
}

func (c CatalogConfirmation) routeSpec() (domain.RouteSpec, error) {
	spec := domain.NewRouteSpec()
	if c.Required != nil {
		spec.Required = *c.Required
	}
	if c.AllowSelf != nil {
		spec.AllowSelf = *c.AllowSelf
	}
	spec.RestrictTo = c.RestrictTo

	if c.ExpireAfter != "" {
		d, err := time.ParseDuration(c.ExpireAfter)
		if err != nil {
			return domain.RouteSpec{}, fmt.Errorf("expire_after: %w", err)
		}
		if d <= 0 {
			return domain.RouteSpec{}, fmt.Errorf("expire_after: must be positive, got %s", d)
		}
		spec.ExpireAfter = d
	}

	if c.TwoFactor != "" {
		mode, err := domain.ParseTwoFactorMode(c.TwoFactor)
		if err != nil {
			return domain.RouteSpec{}, err
		}
		spec.TwoFactor = mode
	}
	return spec, nil
}

// Seed adds the catalog's users and group memberships to dir.
func (c *Catalog) Seed(dir *directory.Memory) {
	for _, u := range c.Users {
		dir.AddUser(domain.User{ID: u.ID, Name: u.Name, MentionName: u.Mention})
		for _, g := range u.Groups {
			dir.AddUserToGroup(u.ID, g)
		}
	}
}

// Register adds every catalog command to robot.
func (c *Catalog) Register(robot *chat.Robot) error {
	for _, cmd := range c.Commands {
		reply := cmd.Reply
		err := robot.Register(chat.Route{
			Name:    cmd.Name,
			Pattern: cmd.pattern,
			Handler: func(ctx context.Context, res *chat.Response) error {
				res.Reply(res.Expand(reply))
				return nil
			},
			Confirmation: cmd.spec,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
