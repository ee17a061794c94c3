package detect

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/digitalhand/pitrac-light-sub000/internal/ball"
)

func TestRemoveConcentricDuplicates(t *testing.T) {
	tests := []struct {
		name string
		in   []ball.Circle
		want []ball.Circle
	}{
		{
			name: "empty",
			in:   nil,
			want: nil,
		},
		{
			name: "single circle untouched",
			in:   []ball.Circle{{X: 10, Y: 10, Radius: 20}},
			want: []ball.Circle{{X: 10, Y: 10, Radius: 20}},
		},
		{
			name: "distinct centers untouched",
			in: []ball.Circle{
				{X: 10, Y: 10, Radius: 20},
				{X: 60, Y: 10, Radius: 18},
				{X: 10, Y: 80, Radius: 25},
			},
			want: []ball.Circle{
				{X: 10, Y: 10, Radius: 20},
				{X: 60, Y: 10, Radius: 18},
				{X: 10, Y: 80, Radius: 25},
			},
		},
		{
			name: "concentric keeps larger, smaller listed second",
			in: []ball.Circle{
				{X: 10, Y: 10, Radius: 20},
				{X: 10, Y: 10, Radius: 12},
			},
			want: []ball.Circle{{X: 10, Y: 10, Radius: 20}},
		},
		{
			name: "concentric keeps larger, smaller listed first",
			in: []ball.Circle{
				{X: 10, Y: 10, Radius: 12},
				{X: 10, Y: 10, Radius: 20},
			},
			want: []ball.Circle{{X: 10, Y: 10, Radius: 20}},
		},
		{
			name: "centers equal after rounding",
			in: []ball.Circle{
				{X: 10.2, Y: 9.8, Radius: 12},
				{X: 10.4, Y: 10.1, Radius: 20},
			},
			want: []ball.Circle{{X: 10.4, Y: 10.1, Radius: 20}},
		},
		{
			name: "two concentric groups and a loner",
			in: []ball.Circle{
				{X: 10, Y: 10, Radius: 12},
				{X: 50, Y: 50, Radius: 30},
				{X: 10, Y: 10, Radius: 20},
				{X: 50, Y: 50, Radius: 8},
				{X: 90, Y: 20, Radius: 15},
			},
			want: []ball.Circle{
				{X: 50, Y: 50, Radius: 30},
				{X: 10, Y: 10, Radius: 20},
				{X: 90, Y: 20, Radius: 15},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RemoveConcentricDuplicates(append([]ball.Circle(nil), tt.in...))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("unexpected survivors (-want +got):\n%s", diff)
			}
		})
	}
}
