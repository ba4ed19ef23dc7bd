package types

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestUnitID(t *testing.T) {
	id := NewUnitID(0x02, 0x0102)
	require.Len(t, id, UnitIDLength)
	require.EqualValues(t, []byte{0, 0, 0, 0, 0, 0, 1, 2, 2}, id)
	require.True(t, id.HasType(0x02))
	require.False(t, id.HasType(0x03))
	require.EqualValues(t, 0x0102, id.Number())
	require.Equal(t, "000000000000010202", id.String())
	require.True(t, id.Eq(NewUnitID(0x02, 0x0102)))
	require.Equal(t, -1, id.Compare(NewUnitID(0x02, 0x0103)))

	// only sequence number based IDs have number
	require.Zero(t, UnitID{}.TypeByte())
	require.EqualValues(t, 2, UnitID{1, 2}.TypeByte())
	require.Zero(t, UnitID{1, 2}.Number())
	require.False(t, UnitID{2}.HasType(2))

	txt, err := id.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "0x000000000000010202", string(txt))
	var back UnitID
	require.NoError(t, back.UnmarshalText(txt))
	require.Equal(t, id, back)
}

func TestNewUnitIDFromBytes(t *testing.T) {
	id := NewUnitIDFromBytes(0x0E, []byte{1, 2, 3})
	require.EqualValues(t, []byte{1, 2, 3, 0x0E}, id)
	require.True(t, id.HasType(0x0E))
	require.EqualValues(t, []byte{1, 2, 3}, id.Key())

	a, b := NewUnitID(1, 7), NewUnitID(2, 9)
	id = NewUnitIDFromBytes(0x0A, a, b)
	require.Len(t, id, 2*UnitIDLength+1)
	require.EqualValues(t, a, id[:UnitIDLength])
	require.EqualValues(t, b, id[UnitIDLength:2*UnitIDLength])
}

func TestPartitionID(t *testing.T) {
	pid := PartitionID(0x01020304)
	require.Equal(t, []byte{1, 2, 3, 4}, pid.Bytes())
	require.Equal(t, "01020304", pid.String())

	back, err := BytesToPartitionID(pid.Bytes())
	require.NoError(t, err)
	require.Equal(t, pid, back)

	_, err = BytesToPartitionID([]byte{1})
	require.EqualError(t, err, "partition ID length must be 4 bytes, got 1 bytes")
}

func TestIdentity_Text(t *testing.T) {
	id := IdentityFromPubKey([]byte{2, 3, 4})
	require.False(t, id.IsZero())
	require.True(t, Identity{}.IsZero())

	txt, err := id.MarshalText()
	require.NoError(t, err)
	var back Identity
	require.NoError(t, back.UnmarshalText(txt))
	require.Equal(t, id, back)

	require.EqualError(t, back.UnmarshalText([]byte("abc")), "invalid identity encoding")
}

func TestIdentity_YAML(t *testing.T) {
	type doc struct {
		Authority Identity `yaml:"authority"`
	}
	in := doc{Authority: IdentityFromPubKey([]byte{1})}
	b, err := yaml.Marshal(in)
	require.NoError(t, err)
	require.Contains(t, string(b), in.Authority.String())

	var out doc
	require.NoError(t, yaml.Unmarshal(b, &out))
	require.Equal(t, in, out)
}

func TestBytes_Text(t *testing.T) {
	var b Bytes = []byte{1, 2, 3, 4, 5, 6, 7}
	marshaled, err := b.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "0x01020304050607", string(marshaled))

	var unmarshaled Bytes
	require.NoError(t, unmarshaled.UnmarshalText(marshaled))
	require.Equal(t, b, unmarshaled)

	marshaled, err = Bytes{}.MarshalText()
	require.NoError(t, err)
	require.Nil(t, marshaled)
}
