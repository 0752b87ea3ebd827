// Vicinus - Collaborative Filtering Recommendation Service
// Copyright 2026 T. Markell (tmarkell)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tmarkell/vicinus

/*
Package supervisor provides process supervision for Vicinus using suture v4.

The tree keeps the training loop and the ops listener in separate layers so
a crash-looping trainer cannot take down health reporting:

	RootSupervisor ("vicinus")
	├── TrainingSupervisor ("training-layer")
	│   └── TrainerService
	└── OpsSupervisor ("ops-layer")
	    └── HTTPService (health, readiness, metrics)

Suture restarts crashed services with exponential backoff. When a layer
exceeds its failure threshold the backoff applies to that layer alone; the
sibling layer keeps running.

Supervisor events (start, stop, failure, backoff) are reported through
sutureslog into the application's structured log stream.
*/
package supervisor
