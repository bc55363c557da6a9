package crypt

import "crypto/cipher"

// ecb is a cipher.BlockMode applying the block cipher to each block on its
// own. crypto/cipher deliberately has no ECB mode.
type ecb struct {
	b       cipher.Block
	decrypt bool
}

var _ cipher.BlockMode = (*ecb)(nil)

func newECBEncrypter(b cipher.Block) cipher.BlockMode {
	return &ecb{b: b}
}

func newECBDecrypter(b cipher.Block) cipher.BlockMode {
	return &ecb{b: b, decrypt: true}
}

func (e *ecb) BlockSize() int {
	return e.b.BlockSize()
}

func (e *ecb) CryptBlocks(dst, src []byte) {
	bs := e.b.BlockSize()
	if len(src)%bs != 0 {
		panic("crypt: ECB input not full blocks")
	}
	if len(dst) < len(src) {
		panic("crypt: ECB output smaller than input")
	}
	for len(src) > 0 {
		if e.decrypt {
			e.b.Decrypt(dst[:bs], src[:bs])
		} else {
			e.b.Encrypt(dst[:bs], src[:bs])
		}
		dst = dst[bs:]
		src = src[bs:]
	}
}
