//go:build turbo && cgo

package jpeg

/*
#cgo pkg-config: libjpeg
#include <stdio.h>
#include <jpeglib.h>
#include <jerror.h>
#include <stdlib.h>
#include <string.h>
#include <setjmp.h>

typedef struct {
    struct jpeg_error_mgr pub;
    jmp_buf setjmp_buffer;
    char msg[JMSG_LENGTH_MAX];
} sf_error_mgr;

static void sf_error_exit(j_common_ptr cinfo) {
    sf_error_mgr *err = (sf_error_mgr *)cinfo->err;
    (*cinfo->err->format_message)(cinfo, err->msg);
    longjmp(err->setjmp_buffer, 1);
}

// Encode planar YCbCr to JPEG. Chroma planes are addressed with the given
// horizontal/vertical shifts (1,1 for 4:2:0; 0,0 for 4:4:4).
static int sf_encode_ycc(
    const unsigned char *y, int y_stride,
    const unsigned char *cb, const unsigned char *cr, int c_stride,
    int hshift, int vshift,
    int width, int height, int quality,
    unsigned char **out_buffer, unsigned long *out_size,
    char **error_msg) {

    struct jpeg_compress_struct cinfo;
    sf_error_mgr jerr;
    JSAMPROW row[1];
    unsigned char *volatile row_buffer = NULL;
    int result = 0;

    *out_buffer = NULL;
    *out_size = 0;
    *error_msg = NULL;

    cinfo.err = jpeg_std_error(&jerr.pub);
    jerr.pub.error_exit = sf_error_exit;
    if (setjmp(jerr.setjmp_buffer)) {
        *error_msg = strdup(jerr.msg);
        result = -1;
        goto cleanup;
    }

    jpeg_create_compress(&cinfo);
    jpeg_mem_dest(&cinfo, out_buffer, out_size);

    cinfo.image_width = width;
    cinfo.image_height = height;
    cinfo.input_components = 3;
    cinfo.in_color_space = JCS_YCbCr;

    jpeg_set_defaults(&cinfo);
    jpeg_set_quality(&cinfo, quality, TRUE);
    cinfo.comp_info[0].h_samp_factor = hshift ? 2 : 1;
    cinfo.comp_info[0].v_samp_factor = vshift ? 2 : 1;

    jpeg_start_compress(&cinfo, TRUE);

    row_buffer = (unsigned char *)malloc((size_t)width * 3);

    while (cinfo.next_scanline < cinfo.image_height) {
        int yr = cinfo.next_scanline;
        const unsigned char *ysrc = y + yr * y_stride;
        const unsigned char *cbsrc = cb + (yr >> vshift) * c_stride;
        const unsigned char *crsrc = cr + (yr >> vshift) * c_stride;
        unsigned char *dst = row_buffer;

        for (int x = 0; x < width; x++) {
            *dst++ = ysrc[x];
            *dst++ = cbsrc[x >> hshift];
            *dst++ = crsrc[x >> hshift];
        }

        row[0] = row_buffer;
        jpeg_write_scanlines(&cinfo, row, 1);
    }

    jpeg_finish_compress(&cinfo);

cleanup:
    if (row_buffer) free(row_buffer);
    jpeg_destroy_compress(&cinfo);
    return result;
}
*/
import "C"
import (
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"unsafe"
)

// Turbo reports whether the libjpeg-turbo encoder is compiled in.
const Turbo = true

// Encode writes img to w as a JPEG at the given quality.
func Encode(w io.Writer, img image.Image, quality int) error {
	if ycbcr, ok := img.(*image.YCbCr); ok {
		if hs, vs, ok := chromaShift(ycbcr); ok {
			data, err := encodeYCbCr(ycbcr, clampQuality(quality), hs, vs)
			if err != nil {
				return err
			}
			_, err = w.Write(data)
			return err
		}
	}
	return jpeg.Encode(w, img, &jpeg.Options{Quality: clampQuality(quality)})
}

// chromaShift maps the subsample ratio to plane shifts. Ratios libjpeg
// cannot take directly, and sub-images, go through image/jpeg.
func chromaShift(img *image.YCbCr) (int, int, bool) {
	if img.Rect.Min != (image.Point{}) || img.Rect.Empty() {
		return 0, 0, false
	}
	switch img.SubsampleRatio {
	case image.YCbCrSubsampleRatio444:
		return 0, 0, true
	case image.YCbCrSubsampleRatio422:
		return 1, 0, true
	case image.YCbCrSubsampleRatio420:
		return 1, 1, true
	case image.YCbCrSubsampleRatio440:
		return 0, 1, true
	}
	return 0, 0, false
}

func encodeYCbCr(img *image.YCbCr, quality, hshift, vshift int) ([]byte, error) {
	var (
		outBuffer *C.uchar
		outSize   C.ulong
		errorMsg  *C.char
	)

	result := C.sf_encode_ycc(
		(*C.uchar)(&img.Y[0]),
		C.int(img.YStride),
		(*C.uchar)(&img.Cb[0]),
		(*C.uchar)(&img.Cr[0]),
		C.int(img.CStride),
		C.int(hshift),
		C.int(vshift),
		C.int(img.Rect.Dx()),
		C.int(img.Rect.Dy()),
		C.int(quality),
		&outBuffer,
		&outSize,
		&errorMsg,
	)

	if result != 0 || outBuffer == nil {
		err := fmt.Errorf("jpeg encode failed")
		if errorMsg != nil {
			err = fmt.Errorf("jpeg encode failed: %s", C.GoString(errorMsg))
			C.free(unsafe.Pointer(errorMsg))
		}
		if outBuffer != nil {
			C.free(unsafe.Pointer(outBuffer))
		}
		return nil, err
	}

	data := C.GoBytes(unsafe.Pointer(outBuffer), C.int(outSize))
	C.free(unsafe.Pointer(outBuffer))

	return data, nil
}
