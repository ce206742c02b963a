// Linguacache - Predictive Content Prefetching for Edge Translation Devices
// Copyright 2026 D. Vermeer (dvermeer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dvermeer/linguacache

// Package api exposes the prediction engine over HTTP using the Chi
// router: training ingestion, ranked prefetch predictions, network risk
// forecasts, source-weight feedback, and status/health surfaces.
package api
