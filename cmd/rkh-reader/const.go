// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

const (
	githubTokenEnv = "GITHUB_TOKEN"
	defaultJobs    = 0
)

const short = "Print the Root Key Hash of signed firmware images"

const long = `Print the Root Key Hash (RKH) of signed firmware images.

The RKH is the digest of the root certificate of the chain appended to a
signed image. It is compared with the value fused in the device OTP to
establish which key a firmware image has been signed for.

Inputs are files, directories (walked recursively), zip archives, FAT
partition images (--fat) or the assets of a GitHub release (--github).

Pipelines:
  auto    ELF images use the elf pipeline, anything else the raw one
  raw     parse the signing header at --offset and walk the certificates
  elf     parse the header found in the ELF signing segment
  scan    scan the whole file for a contiguous certificate chain

The raw and elf pipelines default to SHA-256, scan defaults to SHA-384.`

const example = `  rkh-reader sbl1.mbn
  rkh-reader --pipeline scan --fail-on-break modem.bin
  rkh-reader --fat --expect 7be49b72f9e4337223ccb84d6eccca4e61ce16e3602ac2008cb18b75babe6d09 NON-HLOS.bin
  rkh-reader --github vendor/firmware --release v1.2 --jobs 4`
