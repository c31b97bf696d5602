// internal/geometry/stl.go
package geometry

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMalformedMesh is returned when a byte stream cannot be parsed as a
// triangulated STL surface.
var ErrMalformedMesh = errors.New("malformed mesh")

const binaryHeaderSize = 84 // 80-byte comment + uint32 triangle count
const binaryTriangleSize = 50

type vec3 struct {
	X, Y, Z float64
}

type triangle struct {
	V1, V2, V3 vec3
}

// ExtractVolume parses an STL byte stream (binary or ASCII,
// auto-detected) and returns the enclosed volume in cm³, rounded to two
// decimals. The mesh's native unit is assumed to be millimeters.
//
// The volume is the absolute value of the divergence-theorem tetrahedron
// sum, so triangle winding does not matter. No manifold or
// self-intersection checks are performed: a broken mesh that parses
// still yields a number.
func ExtractVolume(meshBytes []byte) (float64, error) {
	triangles, err := parseSTL(meshBytes)
	if err != nil {
		return 0, err
	}

	volumeMm3 := 0.0
	for _, t := range triangles {
		volumeMm3 += signedTetraVolume(t)
	}

	volumeCm3 := math.Abs(volumeMm3) / 1000
	return math.Round(volumeCm3*100) / 100, nil
}

// signedTetraVolume is the signed volume of the tetrahedron formed by
// the triangle and the origin: dot(v1, cross(v2, v3)) / 6.
func signedTetraVolume(t triangle) float64 {
	cx := t.V2.Y*t.V3.Z - t.V2.Z*t.V3.Y
	cy := t.V2.Z*t.V3.X - t.V2.X*t.V3.Z
	cz := t.V2.X*t.V3.Y - t.V2.Y*t.V3.X
	return (t.V1.X*cx + t.V1.Y*cy + t.V1.Z*cz) / 6
}

func parseSTL(data []byte) ([]triangle, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrMalformedMesh)
	}

	if isASCII(data) {
		return parseASCII(data)
	}
	return parseBinary(data)
}

// isASCII detects the ASCII variant. Binary files are allowed to start
// with "solid" in their comment header, so the facet keyword is
// required too.
func isASCII(data []byte) bool {
	head := bytes.TrimLeft(data, " \t\r\n")
	if !bytes.HasPrefix(head, []byte("solid")) {
		return false
	}
	probe := data
	if len(probe) > 1024 {
		probe = probe[:1024]
	}
	return bytes.Contains(probe, []byte("facet"))
}

func parseBinary(data []byte) ([]triangle, error) {
	if len(data) < binaryHeaderSize {
		return nil, fmt.Errorf("%w: truncated binary header", ErrMalformedMesh)
	}

	count := binary.LittleEndian.Uint32(data[80:84])
	expected := binaryHeaderSize + int(count)*binaryTriangleSize
	if count == 0 || len(data) < expected {
		return nil, fmt.Errorf("%w: triangle count %d does not match file size %d", ErrMalformedMesh, count, len(data))
	}

	triangles := make([]triangle, 0, count)
	offset := binaryHeaderSize
	for i := uint32(0); i < count; i++ {
		// Skip the 12-byte normal; it is recomputable and often junk.
		v1 := readVec3(data[offset+12:])
		v2 := readVec3(data[offset+24:])
		v3 := readVec3(data[offset+36:])
		triangles = append(triangles, triangle{V1: v1, V2: v2, V3: v3})
		offset += binaryTriangleSize
	}

	return triangles, nil
}

func readVec3(b []byte) vec3 {
	return vec3{
		X: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[0:4]))),
		Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[4:8]))),
		Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[8:12]))),
	}
}

func parseASCII(data []byte) ([]triangle, error) {
	var triangles []triangle
	var verts []vec3

	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 || fields[0] != "vertex" {
			continue
		}
		if len(fields) != 4 {
			return nil, fmt.Errorf("%w: bad vertex line %q", ErrMalformedMesh, strings.TrimSpace(line))
		}

		var v vec3
		var err error
		if v.X, err = strconv.ParseFloat(fields[1], 64); err == nil {
			if v.Y, err = strconv.ParseFloat(fields[2], 64); err == nil {
				v.Z, err = strconv.ParseFloat(fields[3], 64)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("%w: bad vertex coordinate in %q", ErrMalformedMesh, strings.TrimSpace(line))
		}

		verts = append(verts, v)
		if len(verts) == 3 {
			triangles = append(triangles, triangle{V1: verts[0], V2: verts[1], V3: verts[2]})
			verts = verts[:0]
		}
	}

	if len(verts) != 0 {
		return nil, fmt.Errorf("%w: facet with %d vertices", ErrMalformedMesh, len(verts))
	}
	if len(triangles) == 0 {
		return nil, fmt.Errorf("%w: no facets found", ErrMalformedMesh)
	}

	return triangles, nil
}
