package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"bizportal.io/portal/internal/domain"
	"bizportal.io/portal/internal/pkg/logger"
	"bizportal.io/portal/internal/usecase"
)

const seedListPageSize = 500

// Manifest lists the ports a seed run should ensure exist.
//
//	ports:
//	  - instance_url: https://erp-01.example.com
//	    db_name: erp01
//	    db_host: db-01.internal
//	    server_region: eu-west
//	    status: RESERVED
type Manifest struct {
	Ports []ManifestPort `yaml:"ports"`
}

// ManifestPort is one port entry of a Manifest.
type ManifestPort struct {
	InstanceURL       string  `yaml:"instance_url"`
	DBName            string  `yaml:"db_name"`
	DBHost            string  `yaml:"db_host"`
	ServerRegion      string  `yaml:"server_region"`
	Status            string  `yaml:"status"`
	SetupInstructions *string `yaml:"setup_instructions"`
	Notes             string  `yaml:"notes"`
}

// ParseManifest decodes and validates a manifest. Unknown keys are rejected.
func ParseManifest(r io.Reader) (*Manifest, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return &m, nil
		}
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	seen := make(map[string]int, len(m.Ports))
	for i := range m.Ports {
		p := &m.Ports[i]
		p.InstanceURL = strings.TrimSpace(p.InstanceURL)
		p.Status = strings.ToUpper(strings.TrimSpace(p.Status))

		if p.InstanceURL == "" {
			return nil, fmt.Errorf("ports[%d]: instance_url is required", i)
		}
		if prev, dup := seen[p.InstanceURL]; dup {
			return nil, fmt.Errorf("ports[%d]: instance_url %s already listed at ports[%d]", i, p.InstanceURL, prev)
		}
		seen[p.InstanceURL] = i

		switch domain.PortStatus(p.Status) {
		case "", domain.PortStatusAvailable, domain.PortStatusReserved:
		default:
			return nil, fmt.Errorf("ports[%d]: status must be AVAILABLE or RESERVED, got %q", i, p.Status)
		}
	}
	return &m, nil
}

// PortSeeder is the slice of PortAdmin a seed run needs.
type PortSeeder interface {
	ListPorts(ctx context.Context, status domain.PortStatus, limit, offset int) (*usecase.PortPage, error)
	CreatePort(ctx context.Context, in usecase.CreatePortInput, performedBy string) (*domain.Port, error)
}

// SeedResult counts what a seed run did.
type SeedResult struct {
	Created int
	Skipped int
}

// SeedPorts creates every manifest port whose instance URL is not in the
// pool yet. Running it twice is a no-op.
func SeedPorts(ctx context.Context, ports PortSeeder, m *Manifest, performedBy string) (SeedResult, error) {
	existing, err := existingInstanceURLs(ctx, ports)
	if err != nil {
		return SeedResult{}, err
	}

	var res SeedResult
	for _, p := range m.Ports {
		if existing[p.InstanceURL] {
			res.Skipped++
			logger.Debug("Port already seeded, skipping", zap.String("instance_url", p.InstanceURL))
			continue
		}
		created, err := ports.CreatePort(ctx, usecase.CreatePortInput{
			InstanceURL:       p.InstanceURL,
			DBName:            p.DBName,
			DBHost:            p.DBHost,
			ServerRegion:      p.ServerRegion,
			Status:            domain.PortStatus(p.Status),
			SetupInstructions: p.SetupInstructions,
			Notes:             p.Notes,
		}, performedBy)
		if err != nil {
			return res, fmt.Errorf("create port %s: %w", p.InstanceURL, err)
		}
		existing[created.InstanceURL] = true
		res.Created++
	}
	return res, nil
}

func existingInstanceURLs(ctx context.Context, ports PortSeeder) (map[string]bool, error) {
	urls := make(map[string]bool)
	for offset := 0; ; offset += seedListPageSize {
		page, err := ports.ListPorts(ctx, "", seedListPageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, p := range page.Ports {
			urls[p.InstanceURL] = true
		}
		if len(page.Ports) < seedListPageSize {
			return urls, nil
		}
	}
}

// NewSeedRootCmd creates the standalone seed command.
func NewSeedRootCmd(o *Options) *cobra.Command {
	cmd := newSeedCmd(o)
	cmd.Use = "seed"
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	addPersistentFlags(cmd, o, DefaultSeedActor)
	return cmd
}

func newSeedCmd(o *Options) *cobra.Command {
	if o.Open == nil {
		o.Open = OpenDatabase
	}

	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the ports listed in a YAML manifest",
		Long: `Reads a YAML manifest of ports and creates every one whose instance_url
is not in the pool yet. Existing ports are left untouched.`,
		Args: cobra.NoArgs,
		PreRun: func(cmd *cobra.Command, args []string) {
			applyColor(o.NoColor)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("open manifest: %w", err)
			}
			defer f.Close()

			manifest, err := ParseManifest(f)
			if err != nil {
				return err
			}
			return withServices(cmd, o, func(ctx context.Context, svc *Services) error {
				res, err := SeedPorts(ctx, svc.Ports, manifest, o.Actor)
				if err != nil {
					return fmt.Errorf("seeded %d ports before failing: %w", res.Created, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Created %d ports, skipped %d existing\n", green("✓"), res.Created, res.Skipped)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "ports.yaml", "Manifest path")
	return cmd
}
