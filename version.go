// Copyright (c) 2026 The gopql Authors. All rights reserved.

package gopql

// PQLGoClientVersion is the version of the gopql client
const PQLGoClientVersion = "0.3.0"
