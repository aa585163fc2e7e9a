// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

// Package feed implements the Notification Feed: user-facing notifications
// derived from incoming lab results, their read state, and the transient
// popup and sound alerts fired when one is created.
//
// A parameter is abnormal when its numeric value is strictly below the
// numeric value of its normal range. Both are parsed by their leading number,
// so "13-17" compares as 13. Values without a leading number never count as
// abnormal.
//
// Hooks are injected at construction and run on their own goroutines:
//
//	f := feed.New(
//	    feed.WithAlerter(hubAlerter),
//	    feed.WithSoundPlayer(feed.NewBellPlayer(nil)),
//	)
package feed
