package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/carbocation/pfx"
	"google.golang.org/api/iterator"

	"github.com/medimageio/idcmosaic/sample"
)

type candidateRow struct {
	SeriesUID     string `bigquery:"series_uid"`
	StudyUID      string `bigquery:"study_uid"`
	Modality      string `bigquery:"modality"`
	BodyPart      string `bigquery:"body_part"`
	CollectionID  string `bigquery:"collection_id"`
	InstanceCount int64  `bigquery:"instance_count"`
}

// RadiologyCandidates returns up to limit eligible series for one non-slide
// modality. Ordering by a fingerprint of the series UID makes the pool
// stable across runs against the same data release; the sampler shuffles it
// under its own seed.
func (c *Client) RadiologyCandidates(ctx context.Context, modality string, limit int) ([]sample.SeriesCandidate, error) {
	rows, err := c.seriesCandidates(ctx, modality, limit)
	if err != nil {
		return nil, err
	}

	out := make([]sample.SeriesCandidate, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toCandidate())
	}

	return out, nil
}

// SlideCandidates returns up to limit slide-microscopy series together with
// their resolution layers, ordered finest first.
func (c *Client) SlideCandidates(ctx context.Context, limit int) ([]sample.SlideSeries, error) {
	rows, err := c.seriesCandidates(ctx, c.SlideModality, limit)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	out := make([]sample.SlideSeries, 0, len(rows))
	index := make(map[string]int, len(rows))
	uids := make([]string, 0, len(rows))
	for _, row := range rows {
		index[row.SeriesUID] = len(out)
		uids = append(uids, "'"+sqlEscape(row.SeriesUID)+"'")
		out = append(out, sample.SlideSeries{SeriesCandidate: row.toCandidate()})
	}

	spacingFilter := ""
	if c.PixelSpacingMin > 0 {
		spacingFilter += fmt.Sprintf("\n  AND SAFE_CAST(PixelSpacing[SAFE_OFFSET(0)] AS FLOAT64) >= %f", c.PixelSpacingMin)
	}
	if c.PixelSpacingMax > 0 {
		spacingFilter += fmt.Sprintf("\n  AND SAFE_CAST(PixelSpacing[SAFE_OFFSET(0)] AS FLOAT64) <= %f", c.PixelSpacingMax)
	}

	query := c.BQ.Query(fmt.Sprintf(`SELECT SeriesInstanceUID AS series_uid,
  StudyInstanceUID AS study_uid,
  IFNULL(SAFE_CAST(PixelSpacing[SAFE_OFFSET(0)] AS FLOAT64), 0) AS pixel_spacing,
  IFNULL(SAFE_CAST(TotalPixelMatrixColumns AS INT64), 0) AS matrix_columns,
  IFNULL(SAFE_CAST(TotalPixelMatrixRows AS INT64), 0) AS matrix_rows
FROM %s
WHERE Modality = '%s'
  AND SeriesInstanceUID IN (%s)%s
ORDER BY series_uid, pixel_spacing`,
		c.table(), sqlEscape(c.SlideModality), strings.Join(uids, ", "), spacingFilter))

	itr, err := query.Read(ctx)
	if err != nil {
		return nil, pfx.Err(err)
	}

	for {
		var row struct {
			SeriesUID     string  `bigquery:"series_uid"`
			StudyUID      string  `bigquery:"study_uid"`
			PixelSpacing  float64 `bigquery:"pixel_spacing"`
			MatrixColumns int64   `bigquery:"matrix_columns"`
			MatrixRows    int64   `bigquery:"matrix_rows"`
		}

		err := itr.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, pfx.Err(err)
		}

		// A layer without a pixel matrix is not addressable as a tile
		// grid.
		if row.MatrixColumns == 0 || row.MatrixRows == 0 {
			continue
		}

		i, ok := index[row.SeriesUID]
		if !ok {
			continue
		}

		out[i].Layers = append(out[i].Layers, sample.PyramidLayer{
			StudyUID:       row.StudyUID,
			SeriesUID:      row.SeriesUID,
			PixelSpacingMM: row.PixelSpacing,
			MatrixColumns:  int(row.MatrixColumns),
			MatrixRows:     int(row.MatrixRows),
		})
	}

	// Drop series whose layers were all filtered away.
	kept := out[:0]
	for _, s := range out {
		if len(s.Layers) > 0 {
			kept = append(kept, s)
		}
	}

	return kept, nil
}

// SegmentationSeries finds a SEG series within the source study, or ""
// when the study carries none. Pairing by study is how the index relates
// derived objects to their acquisition; the per-frame source references
// inside the object itself settle whether the chosen frame is covered.
func (c *Client) SegmentationSeries(ctx context.Context, studyUID, sourceSeriesUID string) (string, error) {
	query := c.BQ.Query(fmt.Sprintf(`SELECT SeriesInstanceUID AS series_uid
FROM %s
WHERE Modality = 'SEG'
  AND StudyInstanceUID = '%s'
GROUP BY series_uid
ORDER BY series_uid
LIMIT 1`, c.table(), sqlEscape(studyUID)))

	itr, err := query.Read(ctx)
	if err != nil {
		return "", pfx.Err(err)
	}

	var row struct {
		SeriesUID string `bigquery:"series_uid"`
	}
	err = itr.Next(&row)
	if err == iterator.Done {
		return "", nil
	}
	if err != nil {
		return "", pfx.Err(err)
	}

	return row.SeriesUID, nil
}

func (c *Client) seriesCandidates(ctx context.Context, modality string, limit int) ([]candidateRow, error) {
	exclusions := ""
	for _, pattern := range c.ExcludedDescriptions {
		exclusions += fmt.Sprintf("\n  AND LOWER(series_description) NOT LIKE '%%%s%%'", strings.ToLower(sqlEscape(pattern)))
	}

	query := c.BQ.Query(fmt.Sprintf(`SELECT series_uid, study_uid, modality, body_part, collection_id, instance_count
FROM (
  SELECT SeriesInstanceUID AS series_uid,
    ANY_VALUE(StudyInstanceUID) AS study_uid,
    ANY_VALUE(Modality) AS modality,
    IFNULL(ANY_VALUE(BodyPartExamined), 'UNKNOWN') AS body_part,
    ANY_VALUE(collection_id) AS collection_id,
    IFNULL(ANY_VALUE(SeriesDescription), '') AS series_description,
    COUNT(*) AS instance_count
  FROM %s
  WHERE Modality = '%s'
  GROUP BY SeriesInstanceUID
)
WHERE instance_count >= %d%s
ORDER BY FARM_FINGERPRINT(series_uid)
LIMIT %d`, c.table(), sqlEscape(modality), c.MinInstanceCount, exclusions, limit))

	itr, err := query.Read(ctx)
	if err != nil {
		return nil, pfx.Err(err)
	}

	var out []candidateRow
	for {
		var row candidateRow

		err := itr.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, pfx.Err(err)
		}

		out = append(out, row)
	}

	return out, nil
}

func (r candidateRow) toCandidate() sample.SeriesCandidate {
	body := r.BodyPart
	if body == "" {
		body = "UNKNOWN"
	}

	return sample.SeriesCandidate{
		StudyUID:      r.StudyUID,
		SeriesUID:     r.SeriesUID,
		Modality:      r.Modality,
		BodyPart:      body,
		CollectionID:  r.CollectionID,
		InstanceCount: int(r.InstanceCount),
	}
}
