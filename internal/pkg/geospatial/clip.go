package geospatial

// Sutherland–Hodgman polygon clipping on the local projection plane. The
// clip polygon must be convex; approved claim boundaries are simple
// quadrilateral-ish rings, so the subject polygon is clipped against the
// candidate boundary normalized to counterclockwise orientation.

// clipPolygon returns the part of subject inside clip. Both rings are open
// (first point not repeated). An empty result means no intersection.
func clipPolygon(subject, clip []planar) []planar {
	if len(subject) < 3 || len(clip) < 3 {
		return nil
	}

	clip = counterclockwise(clip)

	out := subject
	n := len(clip)
	for i := 0; i < n && len(out) > 0; i++ {
		edgeA := clip[i]
		edgeB := clip[(i+1)%n]
		out = clipAgainstEdge(out, edgeA, edgeB)
	}
	if len(out) < 3 {
		return nil
	}
	return out
}

// clipAgainstEdge keeps the part of ring on the left side of edge a-b.
func clipAgainstEdge(ring []planar, a, b planar) []planar {
	var out []planar
	n := len(ring)
	for i := 0; i < n; i++ {
		cur := ring[i]
		prev := ring[(i+n-1)%n]

		curIn := isLeft(a, b, cur)
		prevIn := isLeft(a, b, prev)

		switch {
		case curIn && prevIn:
			out = append(out, cur)
		case curIn && !prevIn:
			out = append(out, lineIntersection(prev, cur, a, b), cur)
		case !curIn && prevIn:
			out = append(out, lineIntersection(prev, cur, a, b))
		}
	}
	return out
}

// isLeft reports whether p lies on or to the left of the directed edge a-b.
func isLeft(a, b, p planar) bool {
	return (b.x-a.x)*(p.y-a.y)-(b.y-a.y)*(p.x-a.x) >= 0
}

// lineIntersection returns the intersection of lines p1-p2 and p3-p4.
// Callers only invoke it when the segments straddle the clip edge.
func lineIntersection(p1, p2, p3, p4 planar) planar {
	d := (p1.x-p2.x)*(p3.y-p4.y) - (p1.y-p2.y)*(p3.x-p4.x)
	if d == 0 {
		return p2 // parallel; degenerate contact, any endpoint works
	}
	t := ((p1.x-p3.x)*(p3.y-p4.y) - (p1.y-p3.y)*(p3.x-p4.x)) / d
	return planar{
		x: p1.x + t*(p2.x-p1.x),
		y: p1.y + t*(p2.y-p1.y),
	}
}

// counterclockwise returns the ring in CCW orientation.
func counterclockwise(ring []planar) []planar {
	if signedPlanarArea(ring) >= 0 {
		return ring
	}
	rev := make([]planar, len(ring))
	for i, p := range ring {
		rev[len(ring)-1-i] = p
	}
	return rev
}
