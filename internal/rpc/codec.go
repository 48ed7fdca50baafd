// Package rpc implements the storage engine's RPC surface
// over google.golang.org/grpc, wiring internal/session, internal/index,
// internal/wal, internal/checkpoint, and internal/sync into the
// storagepb.StorageServer contract.
// storagepb's messages are plain
// structs marshaled here by a JSON grpc.Codec rather than protoc-gen-go
// wire encoding.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package rpc

import (
	jsoniter "github.com/json-iterator/go"
	"google.golang.org/grpc"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const codecName = "json"

// jsonCodec implements google.golang.org/grpc/encoding.Codec.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return codecName }

// ServerOption forces every RPC on the returned server to use the JSON
// codec, standing in for the protoc-generated binary wire format.
func ServerOption() grpc.ServerOption { return grpc.ForceServerCodec(jsonCodec{}) }

// DialOption is the client-side counterpart of ServerOption.
func DialOption() grpc.DialOption { return grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})) }
