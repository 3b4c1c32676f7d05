// idcmosaic samples a diverse set of imaging tiles from the IDC catalog and
// emits the mosaic manifest consumed by the gallery frontend.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	"github.com/medimageio/idcmosaic"
	"github.com/medimageio/idcmosaic/catalog"
	"github.com/medimageio/idcmosaic/dicomweb"
	"github.com/medimageio/idcmosaic/manifest"
	"github.com/medimageio/idcmosaic/sample"
	"github.com/medimageio/idcmosaic/seg"
)

func main() {
	start := time.Now()
	log.Println("idcmosaic start")
	defer func() {
		log.Printf("idcmosaic end. Took %.2f seconds\n", time.Since(start).Seconds())
	}()

	var numTiles int
	var seed int64
	var output, citations, configPath, project, dataset string
	var contentFilter, attachSeg bool

	flag.IntVar(&numTiles, "n", 100, "Number of tiles to sample")
	flag.StringVar(&output, "o", "docs/data/manifest.json", "Output path for the manifest (local or gs://)")
	flag.StringVar(&citations, "citations", "", "(Optional) Output path for the collection citation CSV (local or gs://)")
	flag.Int64Var(&seed, "seed", 0, "(Optional) Random seed for reproducible sampling. 0 seeds from the clock.")
	flag.StringVar(&configPath, "config", "", "(Optional) JSON config file overriding the default sampling parameters")
	flag.StringVar(&project, "project", "", "Google Cloud project billed for the BigQuery catalog queries")
	flag.StringVar(&dataset, "bq-dataset", catalog.DefaultDataset, "BigQuery dataset holding the IDC index")
	flag.BoolVar(&contentFilter, "content-filter", true, "Validate frame content before keeping a tile")
	flag.BoolVar(&attachSeg, "seg", false, "Attach segmentation overlay data to radiology tiles where available")
	flag.Parse()

	if project == "" {
		log.Println("The -project flag is required")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg := sample.DefaultConfig()
	if configPath != "" {
		var err error
		cfg, err = sample.ParseJSONConfigFromPath(idcmosaic.ExpandHome(configPath))
		if err != nil {
			log.Fatalln(err)
		}
	}
	cfg.ContentFilter = contentFilter
	cfg.AttachSegmentation = attachSeg

	if err := run(numTiles, seed, idcmosaic.ExpandHome(output), idcmosaic.ExpandHome(citations), project, dataset, cfg); err != nil {
		log.Fatalln(err)
	}
}

func run(numTiles int, seed int64, output, citations, project, dataset string, cfg sample.Config) error {
	ctx := context.Background()

	cat, err := catalog.Connect(ctx, project, dataset, cfg)
	if err != nil {
		return err
	}
	defer cat.Close()

	frames := dicomweb.NewClient()

	var segSource sample.SegmentationSource
	if cfg.AttachSegmentation {
		segSource = &seg.Resolver{Pairs: cat, Meta: frames}
	}

	if seed == 0 {
		seed = time.Now().UnixNano()
	} else {
		log.Printf("Sampling with seed %d\n", seed)
	}
	rng := rand.New(rand.NewSource(seed))

	sampler := sample.NewSampler(cat, frames, frames, segSource, cfg, rng)

	log.Printf("Sampling %d diverse images from the IDC index\n", numTiles)
	samples, err := sampler.Sample(ctx, numTiles)
	if err != nil {
		return err
	}
	log.Printf("Successfully resolved %d tiles\n", len(samples))

	version, err := cat.IDCVersion(ctx)
	if err != nil {
		log.Println("Could not determine IDC data release version:", err)
		version = "unknown"
	}

	var gsClient *storage.Client
	if strings.HasPrefix(output, "gs://") || strings.HasPrefix(citations, "gs://") {
		gsClient, err = storage.NewClient(ctx)
		if err != nil {
			return err
		}
	}

	m := manifest.New(samples, version)
	if err := manifest.Write(output, m, gsClient); err != nil {
		return err
	}
	log.Println("Manifest written to", output)

	if citations != "" {
		if err := manifest.WriteCitations(citations, manifest.Citations(samples), gsClient); err != nil {
			return err
		}
		log.Println("Citations written to", citations)
	}

	log.Println("Modality distribution:")
	for _, mc := range m.ModalityDistribution() {
		fmt.Fprintf(os.Stderr, "  %s: %d\n", mc.Modality, mc.Tiles)
	}

	if cfg.AttachSegmentation {
		log.Printf("Tiles with segmentation overlays: %d\n", m.SegmentationCoverage())
	}

	return nil
}
