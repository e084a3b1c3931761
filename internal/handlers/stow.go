package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/otcheredev/dicomweb-bridge/internal/adapters"
	"github.com/otcheredev/dicomweb-bridge/internal/models"
	"github.com/otcheredev/dicomweb-bridge/pkg/dicomjson"
	"github.com/otcheredev/dicomweb-bridge/pkg/multipart"
	"github.com/otcheredev/dicomweb-bridge/pkg/part10"
	"github.com/rs/zerolog/log"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// PS3.18 STOW-RS failure reasons
const (
	failureProcessing       = 0x0110
	failureDifferentStudy   = 0xC409
	failureCannotUnderstand = 0xC000
)

var (
	tagRetrieveURL              = tag.Tag{Group: 0x0008, Element: 0x1190}
	tagFailedSOPSequence        = tag.Tag{Group: 0x0008, Element: 0x1198}
	tagReferencedSOPSequence    = tag.Tag{Group: 0x0008, Element: 0x1199}
	tagReferencedSOPClassUID    = tag.Tag{Group: 0x0008, Element: 0x1150}
	tagReferencedSOPInstanceUID = tag.Tag{Group: 0x0008, Element: 0x1155}
	tagFailureReason            = tag.Tag{Group: 0x0008, Element: 0x1197}
)

// StoreInstances handles STOW-RS. The answer lists stored instances in
// ReferencedSOPSequence and rejected ones in FailedSOPSequence.
func (h *DICOMWebHandler) StoreInstances(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	studyUID := chi.URLParam(r, "studyUID")

	writer, ok := h.store.(adapters.Writer)
	if !ok || writer.ReadOnly() {
		http.Error(w, "Store is read-only", http.StatusMethodNotAllowed)
		return
	}

	boundary, err := multipart.BoundaryFromContentType(r.Header.Get("Content-Type"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
		return
	}

	parts, err := multipart.DecodeReader(http.MaxBytesReader(w, r.Body, h.maxUploadBytes), boundary)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		log.Warn().Err(err).Msg("Rejected malformed STOW-RS body")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(parts) == 0 {
		http.Error(w, "No instances in request", http.StatusBadRequest)
		return
	}

	var referenced, failed []dicomjson.Object
	for i, part := range parts {
		ds, err := part10.Read(part)
		if err != nil {
			log.Warn().Err(err).Int("part", i).Msg("Unreadable STOW-RS part")
			failed = append(failed, failedItem("", "", failureCannotUnderstand))
			h.metrics.Stored(false)
			continue
		}

		classUID := part10.StringValue(ds, tag.SOPClassUID)
		sopUID := part10.StringValue(ds, tag.SOPInstanceUID)

		if studyUID != "" && part10.StringValue(ds, tag.StudyInstanceUID) != studyUID {
			failed = append(failed, failedItem(classUID, sopUID, failureDifferentStudy))
			h.metrics.Stored(false)
			continue
		}

		storeStart := time.Now()
		err = writer.StoreInstance(r.Context(), ds)
		h.metrics.ObserveStore(string(h.store.Type()), "store_instance", storeStart)
		h.record(r, models.ActionStore, sopUID, storeStart, err)
		if err != nil {
			log.Error().Err(err).Str("instance_uid", sopUID).Msg("Failed to store instance")
			failed = append(failed, failedItem(classUID, sopUID, failureProcessing))
			h.metrics.Stored(false)
			continue
		}

		h.metrics.Stored(true)
		referenced = append(referenced, dicomjson.Object{
			dicomjson.TagKey(tagReferencedSOPClassUID):    {VR: "UI", Value: []string{classUID}},
			dicomjson.TagKey(tagReferencedSOPInstanceUID): {VR: "UI", Value: []string{sopUID}},
			dicomjson.TagKey(tagRetrieveURL):              {VR: "UR", Value: []string{h.instanceURL(r, ds)}},
		})
	}

	resp := dicomjson.Object{}
	if len(referenced) > 0 {
		resp[dicomjson.TagKey(tagReferencedSOPSequence)] = dicomjson.Attribute{VR: "SQ", Value: referenced}
	}
	if len(failed) > 0 {
		resp[dicomjson.TagKey(tagFailedSOPSequence)] = dicomjson.Attribute{VR: "SQ", Value: failed}
	}

	status := http.StatusOK
	switch {
	case len(referenced) == 0:
		status = http.StatusConflict
	case len(failed) > 0:
		status = http.StatusAccepted
	}

	log.Info().
		Int("stored", len(referenced)).
		Int("failed", len(failed)).
		Dur("duration", time.Since(start)).
		Msg("STOW-RS request processed")

	writeDICOMJSON(w, status, resp)
}

func failedItem(classUID, sopUID string, reason int) dicomjson.Object {
	obj := dicomjson.Object{
		dicomjson.TagKey(tagFailureReason): {VR: "US", Value: []int{reason}},
	}
	if classUID != "" {
		obj[dicomjson.TagKey(tagReferencedSOPClassUID)] = dicomjson.Attribute{VR: "UI", Value: []string{classUID}}
	}
	if sopUID != "" {
		obj[dicomjson.TagKey(tagReferencedSOPInstanceUID)] = dicomjson.Attribute{VR: "UI", Value: []string{sopUID}}
	}
	return obj
}

// instanceURL is the WADO-RS location of a stored instance
func (h *DICOMWebHandler) instanceURL(r *http.Request, ds dicom.Dataset) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}

	return fmt.Sprintf("%s://%s%s/studies/%s/series/%s/instances/%s",
		scheme, r.Host, h.prefixes.WADO,
		part10.StringValue(ds, tag.StudyInstanceUID),
		part10.StringValue(ds, tag.SeriesInstanceUID),
		part10.StringValue(ds, tag.SOPInstanceUID))
}
