/*
 * Copyright 2025 Olake By Datazip
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


package destination

import (
	"context"

	"github.com/datazip-inc/airlake/types"
)

type Config interface {
	Validate() error
}

type Writer interface {
	GetConfigRef() Config
	Spec() *types.ConnectorSpecification
	Type() string
	// Check verifies the destination is reachable and writable
	Check(ctx context.Context) error
	// Setup prepares the destination for one configured stream; called once
	// per stream before any of its records
	Setup(ctx context.Context, stream *types.ConfiguredStream) error
	Write(ctx context.Context, record *types.Record) error
	// Flush persists everything written so far; a STATE message is only
	// echoed after Flush returns
	Flush(ctx context.Context) error
	Close(ctx context.Context) error
}
