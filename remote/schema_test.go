package remote

import (
	"bufio"
	"os"
	"regexp"
	"strconv"
	"testing"

	"github.com/lililuanluan/weazer/checking"
	"github.com/lililuanluan/weazer/event"
	"github.com/lililuanluan/weazer/verifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field types by number, per message of worker.proto
type schema map[string]map[protowire.Number]string

var (
	messageLine = regexp.MustCompile(`^message (\w+) \{`)
	fieldLine   = regexp.MustCompile(`^\s+(?:repeated\s+)?(\w+)\s+\w+\s*=\s*(\d+);`)
)

func loadSchema(t *testing.T) schema {
	t.Helper()
	f, err := os.Open("worker.proto")
	require.NoError(t, err)
	defer f.Close()

	s := make(schema)
	var cur string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if m := messageLine.FindStringSubmatch(line); m != nil {
			cur = m[1]
			s[cur] = make(map[protowire.Number]string)
			continue
		}
		if line == "}" {
			cur = ""
			continue
		}
		if m := fieldLine.FindStringSubmatch(line); m != nil && cur != "" {
			num, err := strconv.Atoi(m[2])
			require.NoError(t, err)
			s[cur][protowire.Number(num)] = m[1]
		}
	}
	require.NoError(t, sc.Err())
	return s
}

// Walk b as an encoded msg and fail on fields the schema does not declare
// with that number and wire type
func (s schema) check(t *testing.T, msg string, b []byte) {
	t.Helper()
	decl, ok := s[msg]
	require.True(t, ok, "no message %s", msg)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		require.GreaterOrEqual(t, n, 0)
		b = b[n:]
		ft, ok := decl[num]
		require.True(t, ok, "%s has no field %d", msg, num)
		switch ft {
		case "uint64", "sint64", "bool":
			require.Equal(t, protowire.VarintType, typ, "%s.%d", msg, num)
			_, n = protowire.ConsumeVarint(b)
		default:
			require.Equal(t, protowire.BytesType, typ, "%s.%d", msg, num)
			var v []byte
			v, n = protowire.ConsumeBytes(b)
			if ft != "string" && ft != "bytes" {
				s.check(t, ft, v)
			}
		}
		require.GreaterOrEqual(t, n, 0)
		b = b[n:]
	}
}

func TestWireMatchesSchema(t *testing.T) {
	s := loadSchema(t)

	for _, lab := range sampleLabels() {
		s.check(t, "Label", toWire(lab).encode())
	}
	for _, st := range collectStates(t, storeBuffering()) {
		s.check(t, "State", encodeState(st))
		req := &exploreRequest{program: "sb", state: st}
		s.check(t, "ExploreRequest", req.marshal())
	}

	r := verifier.NewResult()
	r.Explored, r.Moot = 3, 1
	r.Outcomes["0:r0=1"] = 3
	r.Hashes[[32]byte{7}] = 3
	r.Error = &verifier.Report{Kind: checking.Safety, Pos: event.Event{Thread: 1, Index: 2}, Msg: "boom", Trace: []string{"a", "b"}}
	r.Warnings = []*verifier.Report{{Kind: checking.WWRace, Racy: event.Event{Thread: 2, Index: 1}, HasRacy: true}}
	s.check(t, "Result", encodeResult(r))
	s.check(t, "ExploreResponse", (&exploreResponse{res: r}).marshal())
}

func TestSchemaDeclaresService(t *testing.T) {
	b, err := os.ReadFile("worker.proto")
	require.NoError(t, err)
	assert.Contains(t, string(b), "package weazer;")
	assert.Regexp(t, `service Worker \{\s+rpc Explore\(ExploreRequest\) returns \(ExploreResponse\);`, string(b))
	assert.Equal(t, "/weazer.Worker/Explore", exploreMethod)
}
