package manifest

import (
	"fmt"
	"sort"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"

	"github.com/medimageio/idcmosaic"
	"github.com/medimageio/idcmosaic/sample"
)

// PortalBaseURL is the IDC exploration portal, used for collection
// attribution links.
const PortalBaseURL = "https://portal.imaging.datacommons.cancer.gov/explore/filters/"

// Citation attributes sampled tiles to the collection they came from. IDC
// usage terms require citing the collections behind any published imagery.
type Citation struct {
	CollectionID string `csv:"collection_id"`
	Tiles        int    `csv:"tiles"`
	PortalURL    string `csv:"portal_url"`
}

// Citations aggregates samples into one citation row per distinct
// collection, largest contribution first.
func Citations(samples []sample.TileSample) []Citation {
	counts := make(map[string]int)
	for _, s := range samples {
		if s.CollectionID == "" {
			continue
		}
		counts[s.CollectionID]++
	}

	out := make([]Citation, 0, len(counts))
	for id, n := range counts {
		out = append(out, Citation{
			CollectionID: id,
			Tiles:        n,
			PortalURL:    fmt.Sprintf("%s?collection_id=%s", PortalBaseURL, id),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Tiles != out[j].Tiles {
			return out[i].Tiles > out[j].Tiles
		}
		return out[i].CollectionID < out[j].CollectionID
	})

	return out
}

// WriteCitations stores the citation CSV at path, which may be local or
// gs://.
func WriteCitations(path string, rows []Citation, client *storage.Client) error {
	w, err := idcmosaic.CreateMaybeGoogleStorage(path, client)
	if err != nil {
		return err
	}

	if err := gocsv.Marshal(&rows, w); err != nil {
		w.Close()
		return pfx.Err(err)
	}

	return pfx.Err(w.Close())
}
