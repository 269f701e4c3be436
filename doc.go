/*
Command gwagn crossmatches a gravitational wave sky localization with the
ALeRCE alert broker catalog to find candidate AGN counterparts.

Contents

  Program overview
  Command line usage
  Configuration
  Output
  Algorithm outline


Program overview

Input is the URL or file name of a multi-order HEALPix skymap, as published
on GraceDB, and a reference AGN catalog in CSV form such as Milliquas.
Output is a list of ZTF objects that lie in the credible region, first
appear after the merger, coincide with a cataloged AGN at a compatible
redshift, are classified by ALeRCE as AGN or transient like, and pass
sky plane and extinction cuts.  A link to the ALeRCE explorer listing the
candidates closes the output.

Sample run:

  gwagn run https://gracedb.ligo.org/api/superevents/S230518h/files/bayestar.multiorder.fits,0 milliquas.csv


Command line usage

  gwagn run <skymap-url> <milliquas.csv>   Full pipeline.
  gwagn skymap <skymap-url>                Credible region and cluster polygons.
  gwagn distance <skymap-url>              Distance posterior and redshift windows.
  gwagn version                            Version and copyright.

Flags of run:

  --config          YAML config file, default $GWAGN_CONFIG
  --log-level       debug, info, warn or error
  --credible-level  credible region level, default .9
  --ndays           first detection window after MJD-OBS, default 200
  --alpha           alpha shape parameter, default .01; <= 0 gives convex hulls
  --sigma-cut       1sigma, 2sigma (default), 3sigma or ksigma
  --batch-size      objects per classifier query, default 10000
  --no-cuts         keep rows failing sky plane or extinction cuts
  --out             directory for CSV snapshots of intermediate stages
  --plot            PNG file showing clusters and candidates


Configuration

Values are layered: built in defaults, a YAML file, then environment
variables with the prefix GWAGN_.  Nested keys use a double underscore, so
GWAGN_CATALOG__DSN sets catalog.dsn.  A .env file in the working directory
is read first.  Command line flags override everything.

The catalog is Postgres by default, with read only credentials fetched
from the ALeRCE use case repository and local settings as a fallback.
Setting catalog.driver to sqlite and catalog.dsn to a file reads a local
mirror with the same tables.

SFD dust maps are read from extinction.dust_dir and downloaded there if
missing.  Downloaded skymaps are cached in cache_dir.


Output

A summary line per stage, one line per candidate giving position,
classification, detections, reference match, redshift and g band
extinction, then the explorer URL.  With --out, the tables redshift.csv,
classifiers.csv, final1.csv and candidates.csv are written as the stages
complete.  Metrics of a run may be pushed to a Prometheus Pushgateway
configured as metrics.push_url.


Algorithm outline

1.  The skymap is read and its pixels sorted by probability density.
Pixels are kept while the cumulative probability stays under the credible
level.

2.  Pixel centers are clustered with k-means.  The smallest k from 2 up
whose silhouette score reaches the threshold is used, or the best scoring
k if none does.

3.  An alpha shape is computed for each cluster.  Its outline is the
polygon of a catalog query for objects first detected within ndays of the
event.

4.  Objects are matched to the nearest reference catalog entry within one
arc second.

5.  The distance posterior gives a window in distance, which is
converted to redshift with WMAP9 cosmology.  Matches with reference
redshifts outside the window are dropped.

6.  Classifier probabilities are summed per object over AGN and transient
classes.  Objects above .5 are kept, stamp classifier results first, and
joined with their detection history.

7.  Ecliptic and galactic latitudes and SFD extinction are computed.  Rows
near the ecliptic with a single detection, near the galactic plane, or
with A_g of a magnitude or more are dropped.

-------------
Public domain.
*/
package main
