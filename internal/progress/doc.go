// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package progress publishes "still working" messages while the backend is
// silent.
//
// A Scheduler arms an idle timer. If it fires while the owning request is
// still active and no partial answer has arrived, a message from the pool is
// published and the timer re-arms itself. Real progress from the server
// resets the timer; the first partial answer silences it for good.
//
// The clock, the message selector and the owner's lock are injected so the
// scheduler can be driven deterministically in tests with a ManualClock.
package progress
