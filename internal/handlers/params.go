package handlers

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/otcheredev/dicomweb-bridge/internal/models"
)

// parseQueryParams maps QIDO-RS matching keys onto QueryParams. Keys may be
// given by keyword or by tag; unknown keys such as includefield are ignored.
func parseQueryParams(q url.Values) (models.QueryParams, error) {
	get := func(keys ...string) string {
		for _, k := range keys {
			if v := q.Get(k); v != "" {
				return v
			}
		}
		return ""
	}

	params := models.QueryParams{
		PatientName:       get("PatientName", "00100010"),
		PatientID:         get("PatientID", "00100020"),
		StudyDate:         get("StudyDate", "00080020"),
		AccessionNumber:   get("AccessionNumber", "00080050"),
		Modality:          get("ModalitiesInStudy", "00080061", "Modality", "00080060"),
		StudyInstanceUID:  get("StudyInstanceUID", "0020000D"),
		SeriesInstanceUID: get("SeriesInstanceUID", "0020000E"),
		SOPInstanceUID:    get("SOPInstanceUID", "00080018"),
	}

	var err error
	if params.Limit, err = nonNegative(q, "limit"); err != nil {
		return params, err
	}
	if params.Offset, err = nonNegative(q, "offset"); err != nil {
		return params, err
	}
	return params, nil
}

func nonNegative(q url.Values, key string) (int, error) {
	v := q.Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}
