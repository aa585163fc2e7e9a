// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

/*
Package validation wraps go-playground/validator v10 with a shared,
lazily built validator and readable error messages.

Field names in messages come from the json tag (or koanf tag for config
structs), so errors read the way the payload or config file is written:

	type acknowledgeRequest struct {
	    ResultID string `json:"resultId" validate:"notblank"`
	}

	if err := validation.ValidateStruct(&req); err != nil {
	    // err.Error() == "resultId must not be blank"
	}

Custom tags:

  - notblank: string is non-empty after trimming whitespace
*/
package validation
