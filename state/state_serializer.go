package state

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/alphabill-org/guild/types"
)

// CBORChecksumLength is the length of CBOR encoded 4 byte checksum.
const CBORChecksumLength = 5

type (
	header struct {
		_         struct{} `cbor:",toarray"`
		Version   uint32
		Round     uint64
		RootHash  []byte
		UnitCount uint64
	}

	unitRecord struct {
		_        struct{} `cbor:",toarray"`
		UnitID   types.UnitID
		UnitData types.RawCBOR
	}
)

// Serialize writes the current committed (or latest savepoint) state to the given writer.
func (s *State) Serialize(writer io.Writer, committed bool) error {
	crc32Writer := NewCRC32Writer(writer)
	encoder, err := types.Cbor.GetEncoder(crc32Writer)
	if err != nil {
		return fmt.Errorf("unable to get encoder: %w", err)
	}

	hdr := &header{Version: 1}
	if committed {
		hdr.Round = s.CommittedRound()
		hdr.RootHash = s.CommittedHash()
	} else {
		if hdr.RootHash, err = s.CalculateRoot(); err != nil {
			return fmt.Errorf("calculating root hash: %w", err)
		}
		hdr.Round = s.CommittedRound()
	}

	var records []*unitRecord
	err = s.Traverse(func(id types.UnitID, u *Unit) error {
		data, err := MarshalUnitData(u.data)
		if err != nil {
			return fmt.Errorf("unable to encode unit %s data: %w", id, err)
		}
		records = append(records, &unitRecord{UnitID: id, UnitData: data})
		return nil
	}, committed)
	if err != nil {
		return err
	}
	hdr.UnitCount = uint64(len(records))

	if err := encoder.Encode(hdr); err != nil {
		return fmt.Errorf("unable to write header: %w", err)
	}
	for _, r := range records {
		if err := encoder.Encode(r); err != nil {
			return fmt.Errorf("unable to write unit record: %w", err)
		}
	}

	// checksum as a fixed length byte array for easier decoding
	if err := encoder.Encode(binary.BigEndian.AppendUint32(nil, crc32Writer.Sum())); err != nil {
		return fmt.Errorf("unable to write checksum: %w", err)
	}
	return nil
}

func readState(stateData io.Reader, udc UnitDataConstructor, opts ...Option) (*State, error) {
	crc32Reader := NewCRC32Reader(stateData, CBORChecksumLength)
	decoder := types.Cbor.GetDecoder(crc32Reader)

	var hdr header
	if err := decoder.Decode(&hdr); err != nil {
		return nil, fmt.Errorf("unable to decode header: %w", err)
	}
	if hdr.Version != 1 {
		return nil, fmt.Errorf("unsupported state version %d", hdr.Version)
	}

	s := NewEmptyState(opts...)
	for i := uint64(0); i < hdr.UnitCount; i++ {
		var r unitRecord
		if err := decoder.Decode(&r); err != nil {
			return nil, fmt.Errorf("unable to decode unit record: %w", err)
		}
		data, err := udc(r.UnitID)
		if err != nil {
			return nil, fmt.Errorf("unable to construct unit data: %w", err)
		}
		if err := types.Cbor.Unmarshal(r.UnitData, data); err != nil {
			return nil, fmt.Errorf("unable to decode unit data: %w", err)
		}
		s.committed[string(r.UnitID)] = NewUnit(data)
	}

	var checksum []byte
	if err := decoder.Decode(&checksum); err != nil {
		return nil, fmt.Errorf("unable to decode checksum: %w", err)
	}
	if binary.BigEndian.Uint32(checksum) != crc32Reader.Sum() {
		return nil, errors.New("checksum mismatch")
	}

	s.rootHash = nil
	rootHash, err := s.CalculateRoot()
	if err != nil {
		return nil, fmt.Errorf("calculating root hash: %w", err)
	}
	if !bytes.Equal(rootHash, hdr.RootHash) {
		return nil, fmt.Errorf("root hash mismatch, recovered %X, expected %X", rootHash, hdr.RootHash)
	}
	s.committedRound = hdr.Round
	s.committedHash = rootHash
	return s, nil
}
