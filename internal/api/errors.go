// Linguacache - Predictive Content Prefetching for Edge Translation Devices
// Copyright 2026 D. Vermeer (dvermeer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dvermeer/linguacache

package api

import "errors"

// Sentinel errors surfaced by the API layer.
var (
	// ErrEmptyBody is returned when a request that requires a JSON body
	// arrives without one.
	ErrEmptyBody = errors.New("request body is empty")

	// ErrBodyTooLarge is returned when a request body exceeds the
	// configured ingestion cap.
	ErrBodyTooLarge = errors.New("request body exceeds size limit")
)
