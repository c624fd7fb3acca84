// MIT License
//
// Copyright (c) 2023-2026 PVArchive Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package model

// ChannelArchiverDataServerInfo identifies one index on a legacy read-only
// Channel Archiver data server. It is independent of the PV ownership model
// and is consulted only as a fallback data source.
type ChannelArchiverDataServerInfo struct {
	// ServerURL is the URL of the data server.
	ServerURL string `json:"server_url"`
	// Index is the archive index on that server.
	Index string `json:"index"`
}

// ChannelArchiverDataServerPVInfo is the coverage one server index has for a
// PV, in epoch seconds. Per-PV listings are sorted by StartSec.
type ChannelArchiverDataServerPVInfo struct {
	ChannelArchiverDataServerInfo
	// StartSec is the epoch second of the earliest archived sample.
	StartSec int64 `json:"start_sec"`
	// EndSec is the epoch second of the latest archived sample.
	EndSec int64 `json:"end_sec"`
}
