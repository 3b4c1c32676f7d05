// Package dicomweb is a thin client for the IDC DICOMweb proxy: instance
// listing for frame-identifier resolution, server-rendered frame retrieval,
// instance metadata as DICOM JSON, and viewer URL construction. It carries
// no sampling logic; failures surface to the caller, which applies its own
// fail-open or fail-closed policy.
package dicomweb

import (
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"net/url"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"

	"github.com/carbocation/pfx"
)

// DefaultBaseURL is the public IDC DICOMweb proxy endpoint.
const DefaultBaseURL = "https://proxy.imaging.datacommons.cancer.gov/current/viewer-only-no-downloads-see-tinyurl-dot-com-slash-3j3d9jyp/dicomWeb"

// DefaultViewerBaseURL is the public IDC viewer.
const DefaultViewerBaseURL = "https://viewer.imaging.datacommons.cancer.gov/viewer"

const (
	metadataTimeout = 30 * time.Second
	frameTimeout    = 10 * time.Second
)

const tagSOPInstanceUID = "00080018"

// Client issues DICOMweb requests with fixed per-call timeouts: 30s for
// metadata, 10s for rendered-frame fetches. There are no transport-level
// retries.
type Client struct {
	BaseURL       string
	ViewerBaseURL string

	meta   *http.Client
	frames *http.Client
}

// NewClient returns a client against the public IDC proxy.
func NewClient() *Client {
	return &Client{
		BaseURL:       DefaultBaseURL,
		ViewerBaseURL: DefaultViewerBaseURL,
		meta:          &http.Client{Timeout: metadataTimeout},
		frames:        &http.Client{Timeout: frameTimeout},
	}
}

// ResolveInstance maps (study, series, 0-based instance index) onto the
// instance's SOPInstanceUID via the instance listing.
func (c *Client) ResolveInstance(studyUID, seriesUID string, instanceIndex int) (string, error) {
	reqURL := fmt.Sprintf("%s/studies/%s/series/%s/instances?limit=%d",
		c.BaseURL, url.PathEscape(studyUID), url.PathEscape(seriesUID), instanceIndex+1)

	req, err := http.NewRequest(http.MethodGet, reqURL, nil)
	if err != nil {
		return "", pfx.Err(err)
	}
	req.Header.Set("Accept", "application/dicom+json")

	resp, err := c.meta.Do(req)
	if err != nil {
		return "", pfx.Err(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("instance listing for series %s returned status %d", seriesUID, resp.StatusCode)
	}

	var instances []Dataset
	if err := json.NewDecoder(resp.Body).Decode(&instances); err != nil {
		return "", pfx.Err(err)
	}

	if len(instances) <= instanceIndex {
		return "", fmt.Errorf("series %s: wanted instance index %d but listing has %d entries", seriesUID, instanceIndex, len(instances))
	}

	sopUID := instances[instanceIndex].String(tagSOPInstanceUID)
	if sopUID == "" {
		return "", fmt.Errorf("series %s: instance %d carries no SOPInstanceUID", seriesUID, instanceIndex)
	}

	return sopUID, nil
}

// RenderedFrameURL builds the URL of the server-rendered frame (1-based
// frame number within the instance).
func (c *Client) RenderedFrameURL(studyUID, seriesUID, sopUID string, frameNumber int) string {
	return fmt.Sprintf("%s/studies/%s/series/%s/instances/%s/frames/%d/rendered",
		c.BaseURL, url.PathEscape(studyUID), url.PathEscape(seriesUID), url.PathEscape(sopUID), frameNumber)
}

// FetchRenderedFrame retrieves and decodes a rendered frame. The decoders in
// scope are PNG, GIF, BMP, and JPEG.
func (c *Client) FetchRenderedFrame(tileURL string) (image.Image, error) {
	req, err := http.NewRequest(http.MethodGet, tileURL, nil)
	if err != nil {
		return nil, pfx.Err(err)
	}
	req.Header.Set("Accept", "image/png")

	resp, err := c.frames.Do(req)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rendered frame fetch returned status %d", resp.StatusCode)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, pfx.Err(err)
	}

	return img, nil
}

// InstanceMetadata fetches one instance's full metadata as DICOM JSON.
func (c *Client) InstanceMetadata(studyUID, seriesUID, sopUID string) (Dataset, error) {
	reqURL := fmt.Sprintf("%s/studies/%s/series/%s/instances/%s/metadata",
		c.BaseURL, url.PathEscape(studyUID), url.PathEscape(seriesUID), url.PathEscape(sopUID))

	req, err := http.NewRequest(http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, pfx.Err(err)
	}
	req.Header.Set("Accept", "application/dicom+json")

	resp, err := c.meta.Do(req)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata fetch for instance %s returned status %d", sopUID, resp.StatusCode)
	}

	// The metadata endpoint returns an array with one dataset per
	// requested instance.
	var datasets []Dataset
	if err := json.NewDecoder(resp.Body).Decode(&datasets); err != nil {
		return nil, pfx.Err(err)
	}

	if len(datasets) == 0 {
		return nil, fmt.Errorf("metadata fetch for instance %s returned no datasets", sopUID)
	}

	return datasets[0], nil
}

// ViewerURL returns the display URL for a series. Pure pass-through, no
// logic.
func (c *Client) ViewerURL(seriesUID string) string {
	return fmt.Sprintf("%s?SeriesInstanceUID=%s", c.ViewerBaseURL, url.QueryEscape(seriesUID))
}
