package common

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/ipld/go-ipld-prime/codec/dagcbor"
	"github.com/ipld/go-ipld-prime/node/basicnode"
	"github.com/multiformats/go-multicodec"
	multihash "github.com/multiformats/go-multihash/core"

	codecJson "github.com/ipld/go-ipld-prime/codec/json"
)

// EncodeDagCbor converts obj through its JSON form into canonical dag-cbor.
func EncodeDagCbor(obj interface{}) ([]byte, error) {
	buf, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}

	nb := basicnode.Prototype.Any.NewBuilder()
	if err := codecJson.Decode(nb, bytes.NewBuffer(buf)); err != nil {
		return nil, fmt.Errorf("failed to decode json into ipld node: %w", err)
	}

	node := nb.Build()

	var bbuf bytes.Buffer
	if err := dagcbor.Encode(node, &bbuf); err != nil {
		return nil, err
	}
	return bbuf.Bytes(), nil
}

func HashBytes(data []byte, mf multicodec.Code) (cid.Cid, error) {
	prefix := cid.Prefix{
		Version:  1,
		Codec:    uint64(mf),
		MhType:   multihash.SHA2_256,
		MhLength: -1,
	}

	return prefix.Sum(data)
}

// ComputeId is the CIDv1 (dag-cbor, sha2-256) of obj.
func ComputeId(obj interface{}) (cid.Cid, error) {
	b, err := EncodeDagCbor(obj)
	if err != nil {
		return cid.Undef, err
	}
	return HashBytes(b, multicodec.DagCbor)
}
