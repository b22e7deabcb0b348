package output_test

import (
	"fmt"

	"github.com/jonwraymond/datahub/frame"
	"github.com/jonwraymond/datahub/output"
)

func ExampleFormat() {
	payload, err := frame.Encode(frame.MustNew(
		frame.Strings("city", "Oslo", "Lima"),
		frame.Ints("temp", 3, 19),
	))
	if err != nil {
		fmt.Println(err)
		return
	}

	for _, kind := range []output.Kind{output.KindCSV, output.KindJSON} {
		res, err := output.Format(payload, kind)
		if err != nil {
			fmt.Println(err)
			return
		}
		fmt.Println(res.ContentType)
		fmt.Println(string(res.Body))
	}
	// Output:
	// text/plain
	// ,city,temp
	// 0,Oslo,3
	// 1,Lima,19
	//
	// application/json
	// {"city":{"0":"Oslo","1":"Lima"},"temp":{"0":3,"1":19}}
}
