package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/stubbl/identity/internal/identity/domain"
	"github.com/stubbl/identity/pkg/cryptox"
	"github.com/stubbl/identity/pkg/slogx"
	"gopkg.in/yaml.v3"
)

// ClientImporter writes whole client documents. The mongo driver's
// ClientImporter implements it.
type ClientImporter interface {
	Upsert(ctx context.Context, c domain.Client) (created bool, err error)
}

type clientSeedFile struct {
	Clients []yaml.Node `yaml:"clients"`
}

// LoadClientSeed reads client definitions from a YAML file. Settings a
// definition leaves out keep the values of domain.NewClient.
func LoadClientSeed(path string) ([]domain.Client, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open client seed: %w", err)
	}
	defer f.Close()
	return ParseClientSeed(f)
}

func ParseClientSeed(r io.Reader) ([]domain.Client, error) {
	var file clientSeedFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("parse client seed: %w", err)
	}

	clients := make([]domain.Client, 0, len(file.Clients))
	seen := make(map[string]bool, len(file.Clients))
	for i := range file.Clients {
		c := domain.NewClient()
		if err := file.Clients[i].Decode(&c); err != nil {
			return nil, fmt.Errorf("parse client seed: client %d: %w", i, err)
		}
		if c.ClientID == "" {
			return nil, fmt.Errorf("parse client seed: client %d: clientId is required", i)
		}
		if seen[c.ClientID] {
			return nil, fmt.Errorf("parse client seed: duplicate clientId %q", c.ClientID)
		}
		seen[c.ClientID] = true
		clients = append(clients, c)
	}
	return clients, nil
}

// SeedResult counts what SeedClients wrote.
type SeedResult struct {
	Created int
	Updated int
}

// SeedClients upserts every client. Secret values are given in plaintext and
// stored as their base64 SHA-256 digest.
func SeedClients(ctx context.Context, importer ClientImporter, clients []domain.Client) (SeedResult, error) {
	l := slogx.FromContext(ctx)
	var res SeedResult

	for _, c := range clients {
		secrets := make([]domain.ClientSecret, len(c.ClientSecrets))
		for i, secret := range c.ClientSecrets {
			if secret.Type == "" {
				secret.Type = domain.DefaultSecretType
			}
			secret.Value = cryptox.HashSecret(secret.Value)
			secrets[i] = secret
		}
		c.ClientSecrets = secrets

		created, err := importer.Upsert(ctx, c)
		if err != nil {
			return res, fmt.Errorf("seed client %q: %w", c.ClientID, err)
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
		l.Info("client seeded", slog.String("client_id", c.ClientID), slog.Bool("created", created))
	}
	return res, nil
}
