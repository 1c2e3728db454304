package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/spf13/pflag"

	"github.com/conorfennell/ankix"
	"github.com/conorfennell/ankix/internal/config"
	"github.com/conorfennell/ankix/internal/domain"
	"github.com/conorfennell/ankix/internal/web"
)

func main() {
	// 1. Define and parse command-line flags
	flags := config.Flags("ankix")
	flags.String("import", "", "import a package archive into the collection")
	flags.StringSlice("skip-media", nil, "media types to skip on import (image, audio, font)")
	flags.Bool("serve", false, "start the review web UI")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatalf("Failed to parse flags: %v", err)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Open the collection
	opts := []ankix.Option{ankix.WithMarkdown(cfg.Markdown)}
	table, err := cfg.Table()
	if err != nil {
		log.Fatalf("Failed to parse srs table: %v", err)
	}
	if table != nil {
		opts = append(opts, ankix.WithSRS(table))
	}

	col, err := ankix.Open(cfg.Database, opts...)
	if err != nil {
		log.Fatalf("Failed to open collection %s: %v", cfg.Database, err)
	}
	defer col.Close()
	log.Printf("Collection opened: %s", cfg.Database)

	// 3. Import, if asked
	if archive, _ := flags.GetString("import"); archive != "" {
		skips, err := skipTypes(flags)
		if err != nil {
			log.Fatal(err)
		}
		if err := col.ImportAPKG(archive, skips...); err != nil {
			log.Fatalf("Failed to import %s: %v", archive, err)
		}
		log.Printf("Imported %s", archive)
	}

	// 4. Serve, if asked
	if serve, _ := flags.GetBool("serve"); serve {
		srv := web.NewServer(col)
		log.Printf("Review UI listening on http://%s", cfg.Addr)
		log.Fatal(http.ListenAndServe(cfg.Addr, srv))
	}
}

func skipTypes(flags *pflag.FlagSet) ([]domain.MediaType, error) {
	names, _ := flags.GetStringSlice("skip-media")
	var skips []domain.MediaType
	for _, name := range names {
		switch t := domain.MediaType(name); t {
		case domain.MediaImage, domain.MediaAudio, domain.MediaFont:
			skips = append(skips, t)
		default:
			return nil, fmt.Errorf("unknown media type %q", name)
		}
	}
	return skips, nil
}
