package utils

import "testing"

func TestTruncateForLog(t *testing.T) {
	t.Parallel()

	gatewayPage := "<html>\r\n<head><title>502 Bad Gateway</title></head>\r\n<body>\r\n<center><h1>502 Bad Gateway</h1></center>\r\n</body>\r\n</html>\r\n"

	tests := []struct {
		name   string
		input  string
		limit  int
		expect string
	}{
		{
			name:   "non-positive limit",
			input:  `{"errors":[{"type":"not_found"}]}`,
			limit:  0,
			expect: "",
		},
		{
			name:   "short json body kept as is",
			input:  `{"errors":[{"type":"not_found"}]}`,
			limit:  200,
			expect: `{"errors":[{"type":"not_found"}]}`,
		},
		{
			name:   "gateway page flattened",
			input:  gatewayPage,
			limit:  200,
			expect: "<html> <head><title>502 Bad Gateway</title></head> <body> <center><h1>502 Bad Gateway</h1></center> </body> </html>",
		},
		{
			name:   "gateway page cut",
			input:  gatewayPage,
			limit:  13,
			expect: "<html> <head>...",
		},
		{
			name:   "cyrillic is cut by runes",
			input:  "Резюме не найдено",
			limit:  6,
			expect: "Резюме...",
		},
		{
			name:   "blank body",
			input:  " \n\t ",
			limit:  10,
			expect: "",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := TruncateForLog(tt.input, tt.limit); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}
